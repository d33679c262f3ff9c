package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLineAsker(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"line", "  this week \nignored\n", "this week", false},
		{"no trailing newline", "last month", "last month", false},
		{"empty input", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := newLineAsker(strings.NewReader(tt.input), &out).Ask(context.Background(), "Which time frame?")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !strings.Contains(out.String(), "Which time frame?") {
				t.Errorf("expected prompt written, got %q", out.String())
			}
		})
	}
}

func TestLineAsker_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newLineAsker(r, io.Discard).Ask(ctx, "Which coin?")
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPromptModel(t *testing.T) {
	m := newPromptModel("Which time frame do you mean?")
	if !strings.Contains(m.View(), "Which time frame") {
		t.Errorf("expected question in view, got %q", m.View())
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("24h")})
	m = next.(promptModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	if !m.done || cmd == nil {
		t.Fatal("expected enter to finish the prompt")
	}
	if m.input.Value() != "24h" {
		t.Errorf("expected typed answer, got %q", m.input.Value())
	}
	if m.View() != "" {
		t.Error("expected empty view once done")
	}
}

func TestPromptModel_Cancel(t *testing.T) {
	next, _ := newPromptModel("q").Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !next.(promptModel).cancelled {
		t.Error("expected esc to cancel")
	}
}
