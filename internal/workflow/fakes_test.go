package workflow

import (
	"context"

	"github.com/vinayprograms/hekmatica/internal/reasoning"
	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

// fakeService is a scriptable reasoning.Service that counts calls.
type fakeService struct {
	clarification *reasoning.Clarification
	subqueries    []string
	plan          *reasoning.Plan
	answer        *reasoning.Answer
	// critiques are returned in order; the last one repeats.
	critiques []*reasoning.Critique

	rankFunc func(results []retrieval.Result, topK int) []reasoning.RankedResult
	err      map[reasoning.Operation]error

	calls        map[reasoning.Operation]int
	lastDetails  string
	lastContext  []reasoning.ContextItem
	lastRendered string
}

func newFakeService() *fakeService {
	return &fakeService{
		clarification: &reasoning.Clarification{},
		subqueries:    []string{"sub one", "sub two"},
		plan: &reasoning.Plan{Steps: []reasoning.PlanStep{
			{Tool: reasoning.ToolWebSearch, Query: "bitcoin outlook"},
		}},
		answer: &reasoning.Answer{
			ExecutiveSummary:    "Summary.",
			DetailedExplanation: "Explanation [1].",
			KeyPoints:           []string{"point"},
			CitedAnswer:         "Cited [1].",
			ConfidenceScore:     0.7,
			References:          []reasoning.Reference{{Index: 1, Source: "https://a"}},
		},
		critiques: []*reasoning.Critique{{IsGood: true, TemplateFollowed: true}},
		err:       map[reasoning.Operation]error{},
		calls:     map[reasoning.Operation]int{},
	}
}

func (f *fakeService) Clarify(ctx context.Context, question string) (*reasoning.Clarification, error) {
	f.calls[reasoning.OpClarify]++
	return f.clarification, f.err[reasoning.OpClarify]
}

func (f *fakeService) Subqueries(ctx context.Context, question, details string) ([]string, error) {
	f.calls[reasoning.OpSubqueries]++
	f.lastDetails = details
	return f.subqueries, f.err[reasoning.OpSubqueries]
}

func (f *fakeService) Plan(ctx context.Context, question string, subqueries []string) (*reasoning.Plan, error) {
	f.calls[reasoning.OpPlan]++
	return f.plan, f.err[reasoning.OpPlan]
}

func (f *fakeService) Rank(ctx context.Context, question string, subqueries []string, results []retrieval.Result, topK int) ([]reasoning.RankedResult, error) {
	f.calls[reasoning.OpRank]++
	if f.rankFunc != nil {
		return f.rankFunc(results, topK), f.err[reasoning.OpRank]
	}
	out := make([]reasoning.RankedResult, 0, len(results))
	for _, r := range results {
		out = append(out, reasoning.RankedResult{Content: r.Content, Link: r.Link, RelevanceScore: 1})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, f.err[reasoning.OpRank]
}

func (f *fakeService) Answer(ctx context.Context, question string, items []reasoning.ContextItem) (*reasoning.Answer, error) {
	f.calls[reasoning.OpAnswer]++
	f.lastContext = items
	return f.answer, f.err[reasoning.OpAnswer]
}

func (f *fakeService) Critique(ctx context.Context, question, rendered string) (*reasoning.Critique, error) {
	f.calls[reasoning.OpCritique]++
	f.lastRendered = rendered
	i := f.calls[reasoning.OpCritique] - 1
	if i >= len(f.critiques) {
		i = len(f.critiques) - 1
	}
	var c *reasoning.Critique
	if i >= 0 {
		c = f.critiques[i]
	}
	return c, f.err[reasoning.OpCritique]
}

// fakeSearch returns canned results per query, or a default set.
type fakeSearch struct {
	byQuery  map[string][]retrieval.Result
	fallback []retrieval.Result
	err      error

	queries    []string
	maxResults []int
}

func (f *fakeSearch) WebSearch(ctx context.Context, query string, maxResults int) ([]retrieval.Result, error) {
	f.queries = append(f.queries, query)
	f.maxResults = append(f.maxResults, maxResults)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.byQuery[query]; ok {
		return r, nil
	}
	return f.fallback, nil
}

// fakePrice knows a fixed set of assets.
type fakePrice struct {
	prices  map[string]string
	queries []string
}

func (f *fakePrice) PriceLookup(ctx context.Context, query string) (string, bool, error) {
	f.queries = append(f.queries, query)
	p, ok := f.prices[query]
	return p, ok, nil
}

// recordSink collects events.
type recordSink struct {
	events []Event
}

func (r *recordSink) Emit(e Event) { r.events = append(r.events, e) }

func (r *recordSink) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

func countNode(path []Node, n Node) int {
	c := 0
	for _, p := range path {
		if p == n {
			c++
		}
	}
	return c
}

func indexOf(path []Node, n Node) int {
	for i, p := range path {
		if p == n {
			return i
		}
	}
	return -1
}
