package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	mgr, err := NewFileManager(t.TempDir())
	if err != nil {
		t.Fatalf("create manager error: %v", err)
	}
	return mgr
}

func TestSession_Create(t *testing.T) {
	mgr := newTestManager(t)

	sess, err := mgr.Create("run-1", "What is bitcoin?")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if sess.Status != StatusRunning {
		t.Errorf("expected status running, got %s", sess.Status)
	}
	if _, err := os.Stat(mgr.Path("run-1")); err != nil {
		t.Errorf("expected transcript on disk: %v", err)
	}
}

func TestSession_CompleteRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	sess, _ := mgr.Create("run-2", "Is ETH up?")
	sess.ClarificationAnswer = "this week"

	ok := true
	sess.AddEvent(Event{Type: EventRunStart, Content: "Is ETH up?"})
	sess.AddEvent(Event{Type: EventStepStart, Step: "clarify"})
	sess.AddEvent(Event{
		Type:       EventStepEnd,
		Step:       "clarify",
		Success:    &ok,
		DurationMs: 12,
		Fields:     map[string]interface{}{"needed": false},
	})
	sess.Status = StatusComplete
	sess.Output = "## Executive Summary\nUp."
	sess.Attempts = 1
	if err := mgr.Update(sess); err != nil {
		t.Fatalf("update error: %v", err)
	}

	loaded, err := mgr.Get("run-2")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if loaded.Question != "Is ETH up?" || loaded.ClarificationAnswer != "this week" {
		t.Errorf("header not restored: %+v", loaded)
	}
	if loaded.Status != StatusComplete || loaded.Output != sess.Output || loaded.Attempts != 1 {
		t.Errorf("footer not restored: %+v", loaded)
	}
	if len(loaded.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(loaded.Events))
	}
	end := loaded.Events[2]
	if end.Step != "clarify" || end.Success == nil || !*end.Success || end.DurationMs != 12 {
		t.Errorf("unexpected step_end event: %+v", end)
	}
	if end.Fields["needed"] != false {
		t.Errorf("expected fields restored, got %v", end.Fields)
	}
	if loaded.CurrentSeqID() != 3 {
		t.Errorf("expected seq counter 3, got %d", loaded.CurrentSeqID())
	}
}

func TestSession_Fail(t *testing.T) {
	mgr := newTestManager(t)
	sess, _ := mgr.Create("run-3", "q")

	sess.Status = StatusFailed
	sess.Error = "step plan: model unavailable"
	if err := mgr.Update(sess); err != nil {
		t.Fatalf("update error: %v", err)
	}

	loaded, _ := mgr.Get("run-3")
	if loaded.Status != StatusFailed {
		t.Errorf("expected status failed, got %s", loaded.Status)
	}
	if loaded.Error != "step plan: model unavailable" {
		t.Errorf("expected error restored, got %q", loaded.Error)
	}
}

func TestSession_SequenceIDs(t *testing.T) {
	sess := &Session{}
	var last uint64
	for i := 0; i < 10; i++ {
		seq := sess.AddEvent(Event{Type: EventStepStart})
		if seq <= last {
			t.Fatalf("sequence not monotonic: %d after %d", seq, last)
		}
		last = seq
	}
	if sess.Events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestSession_KeepsExplicitTimestamp(t *testing.T) {
	sess := &Session{}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sess.AddEvent(Event{Type: EventWarning, Timestamp: ts})
	if !sess.Events[0].Timestamp.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, sess.Events[0].Timestamp)
	}
}

func TestSession_NotFound(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWrite_JSONLLayout(t *testing.T) {
	sess := &Session{ID: "x", Question: "q", Status: StatusComplete}
	sess.AddEvent(Event{Type: EventRunStart})

	var buf bytes.Buffer
	if err := Write(&buf, sess); err != nil {
		t.Fatalf("write error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, event, footer; got %d lines", len(lines))
	}
	for i, want := range []string{RecordTypeHeader, RecordTypeEvent, RecordTypeFooter} {
		if !strings.Contains(lines[i], `"_type":"`+want+`"`) {
			t.Errorf("line %d: expected %s record, got %s", i, want, lines[i])
		}
	}
}

func TestRead_NoTrailingNewlineAndBlankLines(t *testing.T) {
	data := `{"_type":"header","id":"abc","question":"q"}

{"_type":"event","seq":1,"type":"run_start","timestamp":"2024-01-01T00:00:00Z"}
{"_type":"footer","status":"complete","output":"done"}`

	sess, err := Read(strings.NewReader(data))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if sess.ID != "abc" || len(sess.Events) != 1 || sess.Output != "done" {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestRead_MalformedLine(t *testing.T) {
	if _, err := Read(strings.NewReader("{not json}\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jsonl")
	os.WriteFile(path, []byte(`{"_type":"header","id":"from-file"}`+"\n"), 0644)

	sess, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if sess.ID != "from-file" {
		t.Errorf("expected id from-file, got %s", sess.ID)
	}
}
