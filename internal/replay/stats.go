package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/vinayprograms/hekmatica/internal/session"
)

// Stats holds aggregate statistics for a run.
type Stats struct {
	TotalDurationMs int64

	// Per-step totals, in first-seen order
	Steps []StepStats

	Warnings int
}

// StepStats aggregates every execution of one step.
type StepStats struct {
	Step    string
	Count   int
	TotalMs int64
	Failed  int
}

// ComputeStats calculates aggregate statistics from session events.
func ComputeStats(sess *session.Session) *Stats {
	stats := &Stats{}
	index := map[string]int{}

	var first, last time.Time
	for _, event := range sess.Events {
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if last.IsZero() || event.Timestamp.After(last) {
			last = event.Timestamp
		}

		switch event.Type {
		case session.EventStepEnd:
			i, ok := index[event.Step]
			if !ok {
				i = len(stats.Steps)
				index[event.Step] = i
				stats.Steps = append(stats.Steps, StepStats{Step: event.Step})
			}
			st := &stats.Steps[i]
			st.Count++
			st.TotalMs += event.DurationMs
			if event.Success != nil && !*event.Success {
				st.Failed++
			}
		case session.EventWarning:
			stats.Warnings++
		}
	}

	if !first.IsZero() {
		stats.TotalDurationMs = last.Sub(first).Milliseconds()
	}
	return stats
}

// PrintStats outputs the statistics to the writer.
func PrintStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n",
		labelStyle.Render("Total Duration:"),
		valueStyle.Render(formatDuration(stats.TotalDurationMs)))

	if len(stats.Steps) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Step Durations:"))
		for _, st := range stats.Steps {
			line := fmt.Sprintf("%s ×%d", formatDuration(st.TotalMs), st.Count)
			if st.Failed > 0 {
				line += errorStyle.Render(fmt.Sprintf(" (%d failed)", st.Failed))
			}
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(st.Step+":"), valueStyle.Render(line))
		}
	}
	if stats.Warnings > 0 {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Warnings:"), warnStyle.Render(fmt.Sprintf("%d", stats.Warnings)))
	}
	fmt.Fprintln(w)
}

// formatDuration formats milliseconds as human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", mins, secs)
}
