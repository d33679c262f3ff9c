package workflow

import "time"

// EventType classifies workflow events.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventStepStart EventType = "step_start"
	EventStepEnd   EventType = "step_end"
	EventWarning   EventType = "warning"
	EventRunEnd    EventType = "run_end"
)

// Event is an observation emitted by the executor. Steps themselves never
// emit events or log.
type Event struct {
	RunID     string                 `json:"run_id"`
	Type      EventType              `json:"type"`
	Node      Node                   `json:"node,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration_ns,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink receives workflow events. Implementations must be safe for use by
// the goroutine running the workflow; Emit should not block for long.
type Sink interface {
	Emit(Event)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// summarize reports what node produced, for step_end events.
func summarize(n Node, s State) map[string]interface{} {
	switch n {
	case NodeClarify:
		if s.Clarification == nil {
			return nil
		}
		return map[string]interface{}{"needed": s.Clarification.Needed}
	case NodeGenerateSubqueries:
		return map[string]interface{}{"subqueries": len(s.Subqueries)}
	case NodePlan:
		if s.Plan == nil {
			return nil
		}
		return map[string]interface{}{"steps": len(s.Plan.Steps)}
	case NodeGatherInfo:
		return map[string]interface{}{"raw_results": len(s.RawResults)}
	case NodeFilterResults:
		return map[string]interface{}{"relevant_results": len(s.RelevantResults)}
	case NodeAnswer:
		if s.Answer == nil {
			return nil
		}
		return map[string]interface{}{
			"confidence": s.Answer.ConfidenceScore,
			"references": len(s.Answer.References),
		}
	case NodeCritique:
		if s.Critique == nil {
			return nil
		}
		return map[string]interface{}{
			"is_good":           s.Critique.IsGood,
			"template_followed": s.Critique.TemplateFollowed,
		}
	case NodeAdditionalSearch:
		return map[string]interface{}{
			"relevant_results": len(s.RelevantResults),
			"attempt":          s.AttemptCount,
		}
	default:
		return nil
	}
}
