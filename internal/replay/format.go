package replay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vinayprograms/hekmatica/internal/session"
)

// formatEvent formats a single event for display.
func (r *Replayer) formatEvent(seq int, event *session.Event) {
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", seq))

	switch event.Type {
	case session.EventRunStart:
		r.fmtRunStart(seqNum, ts, event)
	case session.EventRunEnd:
		r.fmtRunEnd(seqNum, ts, event)
	case session.EventStepStart:
		r.fmtStepStart(seqNum, ts, event)
	case session.EventStepEnd:
		r.fmtStepEnd(seqNum, ts, event)
	case session.EventWarning:
		r.fmtWarning(seqNum, ts, event)
	case session.EventAsk:
		r.fmtAsk(seqNum, ts, event)
	default:
		fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, dimStyle.Render(event.Type))
	}
}

func (r *Replayer) fmtRunStart(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seqNum, ts, flowStyle.Render("RUN START"))
	if r.verbosity >= 1 {
		r.printFields(event.Fields)
	}
}

func (r *Replayer) fmtRunEnd(seqNum, ts string, event *session.Event) {
	label := successStyle.Render("RUN END")
	if event.Error != "" {
		label = errorStyle.Render("RUN FAILED")
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts, label, dimStyle.Render(inlineFields(event.Fields)))
	if event.Error != "" {
		r.printError(event.Error)
	}
}

func (r *Replayer) fmtStepStart(seqNum, ts string, event *session.Event) {
	// Only shown at -vv; step_end carries the outcome.
	if r.verbosity < 2 {
		return
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts, dimStyle.Render("→"), stepStyle.Render(event.Step))
}

func (r *Replayer) fmtStepEnd(seqNum, ts string, event *session.Event) {
	mark := successStyle.Render("✓")
	if event.Success != nil && !*event.Success {
		mark = errorStyle.Render("✗")
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s %s %s %s\n", seqNum, ts, mark,
		stepStyle.Render(event.Step),
		dimStyle.Render(fmt.Sprintf("(%s)", formatDuration(event.DurationMs))),
		dimStyle.Render(inlineFields(event.Fields)))
	if event.Error != "" {
		r.printError(event.Error)
	}
}

func (r *Replayer) fmtWarning(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts, warnStyle.Render("WARN"), valueStyle.Render(event.Content))
}

func (r *Replayer) fmtAsk(seqNum, ts string, event *session.Event) {
	fmt.Fprintf(r.output, "%s │ %s │ %s %s\n", seqNum, ts, askStyle.Render("ASK"), valueStyle.Render(event.Content))
	if answer, ok := event.Fields["answer"]; ok {
		fmt.Fprintf(r.output, "      │          │   %s %s\n", labelStyle.Render("answer:"), valueStyle.Render(fmt.Sprint(answer)))
	}
	if event.Error != "" {
		r.printError(event.Error)
	}
}

// printFields prints event fields one per line in key order.
func (r *Replayer) printFields(fields map[string]interface{}) {
	for _, k := range sortedKeys(fields) {
		fmt.Fprintf(r.output, "      │          │   %s %v\n", labelStyle.Render(k+":"), fields[k])
	}
}

func (r *Replayer) printError(err string) {
	fmt.Fprintf(r.output, "      │          │   %s\n", errorStyle.Render(truncateContent(err, r.maxContentSize)))
}

// inlineFields renders fields as "k=v" pairs in key order.
func inlineFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncateContent(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
