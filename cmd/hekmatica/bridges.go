package main

import (
	"context"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/hekmatica/internal/session"
	"github.com/vinayprograms/hekmatica/internal/workflow"
)

// sessionRecorder bridges workflow events into a session transcript. The
// session is created on run_start using the run ID as the session ID.
type sessionRecorder struct {
	mgr    session.SessionManager
	logger *logging.Logger

	mu   sync.Mutex
	sess *session.Session
}

func newSessionRecorder(mgr session.SessionManager) *sessionRecorder {
	return &sessionRecorder{
		mgr:    mgr,
		logger: logging.New().WithComponent("session"),
	}
}

// Emit implements workflow.Sink.
func (r *sessionRecorder) Emit(ev workflow.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Type == workflow.EventRunStart {
		sess, err := r.mgr.Create(ev.RunID, ev.Message)
		if err != nil {
			r.logger.Warn("failed to create session", map[string]interface{}{"error": err.Error()})
			return
		}
		r.sess = sess
	}
	if r.sess == nil {
		return
	}
	r.sess.AddEvent(toSessionEvent(ev))
	r.save()
}

// recordAsk logs the clarification exchange.
func (r *sessionRecorder) recordAsk(prompt, answer string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return
	}

	event := session.Event{Type: session.EventAsk, Step: workflow.NodeAskUser.String(), Content: prompt}
	if err != nil {
		event.Error = err.Error()
	} else {
		event.Fields = map[string]interface{}{"answer": answer}
		r.sess.ClarificationAnswer = answer
	}
	r.sess.AddEvent(event)
	r.save()
}

// finish records the run's outcome.
func (r *sessionRecorder) finish(res *workflow.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return
	}

	if res != nil {
		r.sess.Attempts = res.Attempts
		r.sess.Output = res.Output
		if a := res.State.ClarificationAnswer; a != nil {
			r.sess.ClarificationAnswer = *a
		}
	}
	if err != nil {
		r.sess.Status = session.StatusFailed
		r.sess.Error = err.Error()
	} else {
		r.sess.Status = session.StatusComplete
	}
	r.save()
}

// id returns the recorded session ID, or "" before a run started.
func (r *sessionRecorder) id() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return ""
	}
	return r.sess.ID
}

func (r *sessionRecorder) save() {
	if err := r.mgr.Update(r.sess); err != nil {
		r.logger.Warn("failed to save session", map[string]interface{}{
			"session_id": r.sess.ID,
			"error":      err.Error(),
		})
	}
}

// toSessionEvent converts a workflow event to its transcript form.
func toSessionEvent(ev workflow.Event) session.Event {
	out := session.Event{
		Type:       string(ev.Type),
		Timestamp:  ev.Timestamp,
		Content:    ev.Message,
		Fields:     ev.Fields,
		Error:      ev.Error,
		DurationMs: ev.Duration.Milliseconds(),
	}
	if ev.Node != 0 {
		out.Step = ev.Node.String()
	}
	if ev.Type == workflow.EventStepEnd || ev.Type == workflow.EventRunEnd {
		ok := ev.Error == ""
		out.Success = &ok
	}
	return out
}

// recordingAsker records each clarification exchange in the transcript.
type recordingAsker struct {
	inner    workflow.Asker
	recorder *sessionRecorder
}

func (a *recordingAsker) Ask(ctx context.Context, question string) (string, error) {
	answer, err := a.inner.Ask(ctx, question)
	a.recorder.recordAsk(question, answer, err)
	return answer, err
}
