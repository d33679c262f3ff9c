package replay

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vinayprograms/hekmatica/internal/session"
)

// Replayer formats recorded runs as a timeline.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxContentSize int // Maximum size for content fields (0 = unlimited)
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxContentSize limits how much of a content field is printed.
func WithMaxContentSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a new Replayer.
func New(output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile loads and replays a transcript from a file.
func (r *Replayer) ReplayFile(path string) error {
	sess, err := session.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", path, err)
	}
	return r.Replay(sess)
}

// ReplayFiles replays several transcripts one after another.
func (r *Replayer) ReplayFiles(paths []string) error {
	for i, path := range paths {
		if len(paths) > 1 {
			fmt.Fprintf(r.output, "%s %s\n", dimStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(paths))), dimStyle.Render(path))
		}
		if err := r.ReplayFile(path); err != nil {
			return err
		}
	}
	return nil
}

// Replay outputs a formatted timeline of a run.
func (r *Replayer) Replay(sess *session.Session) error {
	r.printHeader(sess)
	r.printTimeline(sess)
	r.printSummary(sess)
	return nil
}

func (r *Replayer) printHeader(sess *session.Session) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(sess.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Question:"), valueStyle.Render(sess.Question))
	if sess.ClarificationAnswer != "" {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Clarified:"), valueStyle.Render(sess.ClarificationAnswer))
	}
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:  "), statusStyle(sess.Status).Render(sess.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created: "), valueStyle.Render(sess.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(sess *session.Session) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(sess.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range sess.Events {
		r.formatEvent(i+1, &sess.Events[i])
	}
}

func (r *Replayer) printSummary(sess *session.Session) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch sess.Status {
	case session.StatusComplete:
		fmt.Fprintf(r.output, "%s %s\n", successStyle.Render("COMPLETED"),
			dimStyle.Render(fmt.Sprintf("after %d attempt(s)", sess.Attempts)))
	case session.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(sess.Error))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}

	PrintStats(r.output, ComputeStats(sess))

	if sess.Output != "" && r.verbosity >= 1 {
		fmt.Fprintln(r.output, blockHeaderStyle.Render("── OUTPUT ──"))
		fmt.Fprintln(r.output, truncateContent(sess.Output, r.maxContentSize))
	}
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusComplete:
		return successStyle
	case session.StatusFailed:
		return errorStyle
	default:
		return warnStyle
	}
}
