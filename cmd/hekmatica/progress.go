package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/hekmatica/internal/workflow"
)

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	askStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// progressSink prints one line per finished step.
type progressSink struct {
	out io.Writer
	mu  sync.Mutex
}

func newProgressSink(out io.Writer) *progressSink {
	return &progressSink{out: out}
}

// Emit implements workflow.Sink.
func (p *progressSink) Emit(ev workflow.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case workflow.EventStepEnd:
		mark := successStyle.Render("✓")
		if ev.Error != "" {
			mark = errorStyle.Render("✗")
		}
		line := fmt.Sprintf("%s %s %s", mark, stepStyle.Render(ev.Node.String()), dimStyle.Render(formatElapsed(ev.Duration)))
		if f := formatFields(ev.Fields); f != "" {
			line += " " + dimStyle.Render(f)
		}
		fmt.Fprintln(p.out, line)
		if ev.Error != "" {
			fmt.Fprintln(p.out, "  "+errorStyle.Render(ev.Error))
		}
	case workflow.EventWarning:
		fmt.Fprintln(p.out, warnStyle.Render("! "+ev.Message))
	}
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}

// formatFields renders event fields as sorted key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, " ")
}
