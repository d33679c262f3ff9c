package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/hekmatica/internal/reasoning"
	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

var (
	// ErrNoAsker is returned when the run needs a clarification from the
	// user but no Asker is configured.
	ErrNoAsker = errors.New("clarification required but no asker configured")
	// ErrFieldOwnership is returned when a step writes a field it does not own.
	ErrFieldOwnership = errors.New("step wrote a field it does not own")
)

// Options tunes a run. Zero values fall back to DefaultOptions.
type Options struct {
	MaxAttempts                int
	TopK                       int
	SearchMaxResults           int
	AdditionalSearchMaxResults int
}

// DefaultOptions returns the standard research settings.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:                DefaultMaxAttempts,
		TopK:                       5,
		SearchMaxResults:           5,
		AdditionalSearchMaxResults: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts < 1 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.TopK < 1 {
		o.TopK = d.TopK
	}
	if o.SearchMaxResults < 1 {
		o.SearchMaxResults = d.SearchMaxResults
	}
	if o.AdditionalSearchMaxResults < 1 {
		o.AdditionalSearchMaxResults = d.AdditionalSearchMaxResults
	}
	return o
}

// Request is one question to research.
type Request struct {
	Question string
	// ClarificationAnswer, when set, resolves clarification up front so the
	// user is never prompted.
	ClarificationAnswer *string
	// MaxAttempts overrides Options.MaxAttempts when positive.
	MaxAttempts int
}

// Status represents the execution status.
type Status string

const (
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Result represents the execution result.
type Result struct {
	RunID    string
	Status   Status
	Output   string
	State    State
	Path     []Node
	Attempts int
	Warnings []string
}

// Executor drives questions through the research graph. An Executor holds
// no per-run state and may serve concurrent runs.
type Executor struct {
	steps  steps
	sink   Sink
	logger *logging.Logger

	// Callbacks
	OnStepStart    func(node Node)
	OnStepComplete func(node Node, duration time.Duration)
}

// New creates an executor over the reasoning service and retrieval tools.
func New(svc reasoning.Service, search retrieval.WebSearcher, price retrieval.PriceLooker, opts Options) *Executor {
	return &Executor{
		steps: steps{
			svc:    svc,
			search: search,
			price:  price,
			opts:   opts.withDefaults(),
		},
		sink:   NopSink{},
		logger: logging.New().WithComponent("workflow"),
	}
}

// SetAsker sets the collaborator used to ask the user for clarification.
func (e *Executor) SetAsker(a Asker) {
	e.steps.asker = a
}

// SetSink sets the event sink. A nil sink discards events.
func (e *Executor) SetSink(s Sink) {
	if s == nil {
		s = NopSink{}
	}
	e.sink = s
}

// Options returns the effective options.
func (e *Executor) Options() Options {
	return e.steps.opts
}

func (e *Executor) emit(ev Event) {
	ev.Timestamp = time.Now()
	e.sink.Emit(ev)
}

// Run executes the graph from Clarify to Terminal and formats the answer.
// Any step failure aborts the run; no partial answer is returned.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = e.steps.opts.MaxAttempts
	}

	runID := uuid.New().String()
	state := NewState(req.Question, req.ClarificationAnswer)
	result := &Result{RunID: runID, Status: StatusFailed}

	ctx, span := startRunSpan(ctx, runID, maxAttempts)
	e.emit(Event{
		RunID:   runID,
		Type:    EventRunStart,
		Message: req.Question,
		Fields: map[string]interface{}{
			"max_attempts":         maxAttempts,
			"clarification_preset": req.ClarificationAnswer != nil,
		},
	})

	fail := func(err error) (*Result, error) {
		result.State = state
		result.Attempts = state.AttemptCount
		endRunSpan(span, state.AttemptCount, err)
		e.emit(Event{RunID: runID, Type: EventRunEnd, Error: err.Error(), Fields: map[string]interface{}{
			"status": string(StatusFailed),
		}})
		e.logger.Error("run failed", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		return result, err
	}

	node := NodeClarify
	for node != NodeTerminal {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("step %s: %w", node, err))
		}
		result.Path = append(result.Path, node)

		update, err := e.execStep(ctx, runID, node, state)
		if err != nil {
			return fail(fmt.Errorf("step %s: %w", node, err))
		}
		if err := checkOwnership(node, update); err != nil {
			return fail(fmt.Errorf("step %s: %w", node, err))
		}
		state = state.Apply(update)

		next, warning := transition(node, state, maxAttempts)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
			e.emit(Event{RunID: runID, Type: EventWarning, Node: node, Message: warning})
			e.logger.Warn(warning, map[string]interface{}{
				"run_id":  runID,
				"attempt": state.AttemptCount,
			})
		}
		node = next
	}

	result.Status = StatusComplete
	result.State = state
	result.Attempts = state.AttemptCount
	result.Output = FormatOutput(state)

	endRunSpan(span, state.AttemptCount, nil)
	e.emit(Event{RunID: runID, Type: EventRunEnd, Fields: map[string]interface{}{
		"status":   string(StatusComplete),
		"attempts": state.AttemptCount,
		"answered": state.Answer != nil,
	}})
	return result, nil
}

// checkOwnership rejects updates that write fields outside n's ownership.
func checkOwnership(n Node, u Update) error {
	if extra := u.Fields() &^ n.owns(); extra != 0 {
		return fmt.Errorf("%w: %s", ErrFieldOwnership, strings.Join(extra.Names(), ", "))
	}
	return nil
}

// execStep runs a single node with tracing, events and callbacks around it.
func (e *Executor) execStep(ctx context.Context, runID string, n Node, s State) (Update, error) {
	fn := e.steps.forNode(n)
	if fn == nil {
		return Update{}, fmt.Errorf("no step for node %s", n)
	}

	if e.OnStepStart != nil {
		e.OnStepStart(n)
	}
	e.emit(Event{RunID: runID, Type: EventStepStart, Node: n})

	ctx, span := startStepSpan(ctx, n, s.AttemptCount)
	start := time.Now()
	update, err := fn(ctx, s)
	duration := time.Since(start)
	endStepSpan(span, update.Fields(), err)

	if err != nil {
		e.emit(Event{RunID: runID, Type: EventStepEnd, Node: n, Duration: duration, Error: err.Error()})
		return Update{}, err
	}

	e.emit(Event{
		RunID:    runID,
		Type:     EventStepEnd,
		Node:     n,
		Duration: duration,
		Fields:   summarize(n, s.Apply(update)),
	})
	if e.OnStepComplete != nil {
		e.OnStepComplete(n, duration)
	}
	return update, nil
}
