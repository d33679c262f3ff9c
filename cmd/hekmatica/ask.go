package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
	"github.com/vinayprograms/hekmatica/internal/workflow"
)

const promptWidth = 72

// errPromptCancelled is returned when the user dismisses the clarification prompt.
var errPromptCancelled = errors.New("clarification prompt cancelled")

// Run researches the question and prints the formatted answer to stdout.
func (c *AskCmd) Run() error {
	s := newSettings(c)
	if err := s.load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := newRuntime(s, globalCreds)
	defer rt.cleanup()

	var progress workflow.Sink
	if !c.Quiet {
		progress = newProgressSink(os.Stderr)
	}
	if err := rt.setup(ctx, newAsker(os.Stdin, os.Stderr), progress); err != nil {
		return err
	}

	req := workflow.Request{Question: s.question(c.Question)}
	if c.Clarification != "" {
		answer := c.Clarification
		req.ClarificationAnswer = &answer
	}

	res, err := rt.run(ctx, req)
	if path := rt.sessionPath(); path != "" && !c.Quiet {
		fmt.Fprintln(os.Stderr, dimStyle.Render("session: "+path))
	}
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}
	writeResult(os.Stdout, res)
	return nil
}

// newAsker picks an interactive prompt on a terminal and a line reader otherwise.
func newAsker(in *os.File, out io.Writer) workflow.Asker {
	if isTerminal(in) {
		return &ttyAsker{out: out}
	}
	return newLineAsker(in, out)
}

// lineAsker reads one answer per line, e.g. from a pipe.
type lineAsker struct {
	in  *bufio.Reader
	out io.Writer
}

func newLineAsker(in io.Reader, out io.Writer) *lineAsker {
	return &lineAsker{in: bufio.NewReader(in), out: out}
}

func (a *lineAsker) Ask(ctx context.Context, question string) (string, error) {
	fmt.Fprintf(a.out, "%s\n> ", wordwrap.String(question, promptWidth))

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		text, err := a.in.ReadString('\n')
		ch <- line{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		if l.err != nil && (!errors.Is(l.err, io.EOF) || l.text == "") {
			return "", fmt.Errorf("reading answer: %w", l.err)
		}
		return strings.TrimSpace(l.text), nil
	}
}

// ttyAsker shows a single-line bubbletea prompt.
type ttyAsker struct {
	out io.Writer
}

func (a *ttyAsker) Ask(ctx context.Context, question string) (string, error) {
	p := tea.NewProgram(newPromptModel(question), tea.WithContext(ctx), tea.WithOutput(a.out))
	final, err := p.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", final)
	}
	if m.cancelled {
		return "", errPromptCancelled
	}
	return strings.TrimSpace(m.input.Value()), nil
}

// promptModel asks one question and captures one line.
type promptModel struct {
	question  string
	input     textinput.Model
	width     int
	done      bool
	cancelled bool
}

func newPromptModel(question string) promptModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = promptWidth
	return promptModel{question: question, input: ti, width: promptWidth}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 && msg.Width < promptWidth {
			m.width = msg.Width
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return askStyle.Render(wordwrap.String(m.question, m.width)) + "\n" +
		m.input.View() + "\n" +
		dimStyle.Render("Enter to answer, Esc to cancel") + "\n"
}
