// Package workflow implements the research state machine: the node graph,
// the state threaded through it, the branch predicates and the executor
// that drives a question from clarification to a formatted answer.
package workflow

import (
	"github.com/vinayprograms/hekmatica/internal/reasoning"
	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

// TemplateFeedback is the template-compliance part of the latest critique,
// kept separately so output formatting can use it.
type TemplateFeedback struct {
	Followed        bool                      `json:"followed"`
	SectionFeedback reasoning.SectionFeedback `json:"section_feedback,omitempty"`
	Suggestions     []string                  `json:"suggestions,omitempty"`
}

// State is the snapshot a step reads. Steps never modify it; they return an
// Update which the executor applies to produce the next snapshot.
type State struct {
	Question            string                   `json:"question"`
	Clarification       *reasoning.Clarification `json:"clarification,omitempty"`
	ClarificationAnswer *string                  `json:"clarification_answer,omitempty"`
	Subqueries          []string                 `json:"subqueries,omitempty"`
	Plan                *reasoning.Plan          `json:"plan,omitempty"`
	RawResults          []retrieval.Result       `json:"raw_results,omitempty"`
	RelevantResults     []retrieval.Result       `json:"relevant_results,omitempty"`
	Answer              *reasoning.Answer        `json:"answer,omitempty"`
	Critique            *reasoning.Critique      `json:"critique,omitempty"`
	TemplateFeedback    *TemplateFeedback        `json:"template_feedback,omitempty"`
	AttemptCount        int                      `json:"attempt_count"`
}

// NewState returns the initial state for a run. A pre-supplied clarification
// answer marks clarification as already resolved.
func NewState(question string, clarificationAnswer *string) State {
	s := State{Question: question, AttemptCount: 1}
	if clarificationAnswer != nil {
		answer := *clarificationAnswer
		s.ClarificationAnswer = &answer
		s.Clarification = &reasoning.Clarification{Needed: true}
	}
	return s
}

// Field identifies a State field an Update may write.
type Field uint16

const (
	FieldClarification Field = 1 << iota
	FieldClarificationAnswer
	FieldSubqueries
	FieldPlan
	FieldRawResults
	FieldRelevantResults
	FieldAnswer
	FieldCritique
	FieldTemplateFeedback
	FieldAttemptCount
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldClarification, "clarification"},
	{FieldClarificationAnswer, "clarification_answer"},
	{FieldSubqueries, "subqueries"},
	{FieldPlan, "plan"},
	{FieldRawResults, "raw_results"},
	{FieldRelevantResults, "relevant_results"},
	{FieldAnswer, "answer"},
	{FieldCritique, "critique"},
	{FieldTemplateFeedback, "template_feedback"},
	{FieldAttemptCount, "attempt_count"},
}

// Names lists the field names set in f.
func (f Field) Names() []string {
	var names []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

// Update is a partial state change. Only fields recorded in the mask are
// applied, so a step can explicitly clear a field by setting it to nil.
type Update struct {
	fields Field

	clarification       *reasoning.Clarification
	clarificationAnswer *string
	subqueries          []string
	plan                *reasoning.Plan
	rawResults          []retrieval.Result
	relevantResults     []retrieval.Result
	answer              *reasoning.Answer
	critique            *reasoning.Critique
	templateFeedback    *TemplateFeedback
	attemptCount        int
}

// Fields reports which fields the update writes.
func (u Update) Fields() Field { return u.fields }

func (u Update) WithClarification(c *reasoning.Clarification) Update {
	u.fields |= FieldClarification
	u.clarification = c
	return u
}

func (u Update) WithClarificationAnswer(a *string) Update {
	u.fields |= FieldClarificationAnswer
	u.clarificationAnswer = a
	return u
}

func (u Update) WithSubqueries(q []string) Update {
	u.fields |= FieldSubqueries
	u.subqueries = q
	return u
}

func (u Update) WithPlan(p *reasoning.Plan) Update {
	u.fields |= FieldPlan
	u.plan = p
	return u
}

func (u Update) WithRawResults(r []retrieval.Result) Update {
	u.fields |= FieldRawResults
	u.rawResults = r
	return u
}

func (u Update) WithRelevantResults(r []retrieval.Result) Update {
	u.fields |= FieldRelevantResults
	u.relevantResults = r
	return u
}

func (u Update) WithAnswer(a *reasoning.Answer) Update {
	u.fields |= FieldAnswer
	u.answer = a
	return u
}

func (u Update) WithCritique(c *reasoning.Critique) Update {
	u.fields |= FieldCritique
	u.critique = c
	return u
}

func (u Update) WithTemplateFeedback(tf *TemplateFeedback) Update {
	u.fields |= FieldTemplateFeedback
	u.templateFeedback = tf
	return u
}

func (u Update) WithAttemptCount(n int) Update {
	u.fields |= FieldAttemptCount
	u.attemptCount = n
	return u
}

// Apply returns a new State with u merged in. s is not modified.
func (s State) Apply(u Update) State {
	if u.fields&FieldClarification != 0 {
		s.Clarification = u.clarification
	}
	if u.fields&FieldClarificationAnswer != 0 {
		s.ClarificationAnswer = u.clarificationAnswer
	}
	if u.fields&FieldSubqueries != 0 {
		s.Subqueries = u.subqueries
	}
	if u.fields&FieldPlan != 0 {
		s.Plan = u.plan
	}
	if u.fields&FieldRawResults != 0 {
		s.RawResults = u.rawResults
	}
	if u.fields&FieldRelevantResults != 0 {
		s.RelevantResults = u.relevantResults
	}
	if u.fields&FieldAnswer != 0 {
		s.Answer = u.answer
	}
	if u.fields&FieldCritique != 0 {
		s.Critique = u.critique
	}
	if u.fields&FieldTemplateFeedback != 0 {
		s.TemplateFeedback = u.templateFeedback
	}
	if u.fields&FieldAttemptCount != 0 {
		s.AttemptCount = u.attemptCount
	}
	return s
}
