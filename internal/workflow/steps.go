package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vinayprograms/hekmatica/internal/reasoning"
	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

// Asker obtains a clarification from a human. Ask blocks until an answer is
// given or ctx is done.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, question string) (string, error)

func (f AskerFunc) Ask(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

const defaultClarifyPrompt = "Could you clarify your question?"

var (
	errNoSearcher = errors.New("no web searcher configured")
	errNoPricer   = errors.New("no price lookup configured")
)

// stepFunc performs one node's unit of work against a snapshot.
type stepFunc func(ctx context.Context, s State) (Update, error)

// steps binds the node functions to their collaborators.
type steps struct {
	svc    reasoning.Service
	search retrieval.WebSearcher
	price  retrieval.PriceLooker
	asker  Asker
	opts   Options
}

func (st *steps) forNode(n Node) stepFunc {
	switch n {
	case NodeClarify:
		return st.clarify
	case NodeAskUser:
		return st.askUser
	case NodeGenerateSubqueries:
		return st.generateSubqueries
	case NodePlan:
		return st.plan
	case NodeGatherInfo:
		return st.gatherInfo
	case NodeFilterResults:
		return st.filterResults
	case NodeAnswer:
		return st.answer
	case NodeCritique:
		return st.critique
	case NodeAdditionalSearch:
		return st.additionalSearch
	default:
		return nil
	}
}

func (st *steps) clarify(ctx context.Context, s State) (Update, error) {
	// Already resolved before the run started.
	if s.Clarification != nil && s.ClarificationAnswer != nil {
		return Update{}, nil
	}
	c, err := st.svc.Clarify(ctx, s.Question)
	if err != nil {
		return Update{}, err
	}
	return Update{}.WithClarification(c), nil
}

func (st *steps) askUser(ctx context.Context, s State) (Update, error) {
	if st.asker == nil {
		return Update{}, ErrNoAsker
	}
	prompt := defaultClarifyPrompt
	if s.Clarification != nil && strings.TrimSpace(s.Clarification.Question) != "" {
		prompt = s.Clarification.Question
	}
	answer, err := st.asker.Ask(ctx, prompt)
	if err != nil {
		return Update{}, err
	}
	return Update{}.WithClarificationAnswer(&answer), nil
}

func (st *steps) generateSubqueries(ctx context.Context, s State) (Update, error) {
	details := ""
	if s.ClarificationAnswer != nil {
		details = *s.ClarificationAnswer
	}
	q, err := st.svc.Subqueries(ctx, s.Question, details)
	if err != nil {
		return Update{}, err
	}
	return Update{}.WithSubqueries(q), nil
}

func (st *steps) plan(ctx context.Context, s State) (Update, error) {
	p, err := st.svc.Plan(ctx, s.Question, s.Subqueries)
	if err != nil {
		return Update{}, err
	}
	if p == nil {
		p = &reasoning.Plan{}
	}
	return Update{}.WithPlan(p), nil
}

// gatherInfo runs plan steps in order. A price that cannot be found still
// yields a placeholder result.
func (st *steps) gatherInfo(ctx context.Context, s State) (Update, error) {
	raw := []retrieval.Result{}
	if s.Plan == nil {
		return Update{}.WithRawResults(raw), nil
	}
	for _, ps := range s.Plan.Steps {
		switch ps.Tool {
		case reasoning.ToolWebSearch:
			if st.search == nil {
				return Update{}, errNoSearcher
			}
			found, err := st.search.WebSearch(ctx, ps.Query, st.opts.SearchMaxResults)
			if err != nil {
				return Update{}, fmt.Errorf("web search %q: %w", ps.Query, err)
			}
			raw = append(raw, found...)
		case reasoning.ToolPriceLookup:
			if st.price == nil {
				return Update{}, errNoPricer
			}
			price, ok, err := st.price.PriceLookup(ctx, ps.Query)
			if err != nil {
				return Update{}, fmt.Errorf("price lookup %q: %w", ps.Query, err)
			}
			if !ok {
				price = pricePlaceholder(ps.Query)
			}
			raw = append(raw, retrieval.Result{Content: price})
		default:
			return Update{}, fmt.Errorf("unsupported tool %s", ps.Tool)
		}
	}
	return Update{}.WithRawResults(raw), nil
}

func pricePlaceholder(query string) string {
	return fmt.Sprintf("Price information not available for %q", query)
}

func (st *steps) filterResults(ctx context.Context, s State) (Update, error) {
	if len(s.RawResults) == 0 {
		return Update{}.WithRelevantResults([]retrieval.Result{}), nil
	}
	ranked, err := st.svc.Rank(ctx, s.Question, s.Subqueries, s.RawResults, st.opts.TopK)
	if err != nil {
		return Update{}, err
	}
	relevant := make([]retrieval.Result, 0, len(ranked))
	for _, r := range ranked {
		relevant = append(relevant, retrieval.Result{Content: r.Content, Link: r.Link})
	}
	return Update{}.WithRelevantResults(relevant), nil
}

func (st *steps) answer(ctx context.Context, s State) (Update, error) {
	items := make([]reasoning.ContextItem, 0, len(s.RelevantResults))
	for _, r := range s.RelevantResults {
		items = append(items, reasoning.ContextItem{Content: r.Content, Source: r.Link})
	}
	a, err := st.svc.Answer(ctx, s.Question, items)
	if err != nil {
		return Update{}, err
	}
	if a == nil {
		return Update{}, reasoning.ErrEmptyResponse
	}
	return Update{}.WithAnswer(a), nil
}

// critique always overwrites the previous verdict, so a service that returns
// nothing leaves the critique absent rather than stale.
func (st *steps) critique(ctx context.Context, s State) (Update, error) {
	c, err := st.svc.Critique(ctx, s.Question, RenderForCritique(s.Answer))
	if err != nil {
		return Update{}, err
	}
	u := Update{}.WithCritique(c)
	if c == nil {
		return u.WithTemplateFeedback(s.TemplateFeedback), nil
	}
	return u.WithTemplateFeedback(&TemplateFeedback{
		Followed:        c.TemplateFollowed,
		SectionFeedback: c.SectionFeedback,
		Suggestions:     c.ImprovementSuggestions,
	}), nil
}

func (st *steps) additionalSearch(ctx context.Context, s State) (Update, error) {
	results := s.RelevantResults
	if query := additionalSearchQuery(s); query != "" {
		if st.search == nil {
			return Update{}, errNoSearcher
		}
		found, err := st.search.WebSearch(ctx, query, st.opts.AdditionalSearchMaxResults)
		if err != nil {
			return Update{}, fmt.Errorf("web search %q: %w", query, err)
		}
		results = mergeByLink(s.RelevantResults, found)
	}
	return Update{}.
		WithRelevantResults(results).
		WithAttemptCount(s.AttemptCount + 1), nil
}

// additionalSearchQuery picks the follow-up query. Weak sourcing wins over
// other missing information, which wins over a template miss. An empty
// result means no search.
func additionalSearchQuery(s State) string {
	missing := ""
	if s.Critique != nil {
		missing = strings.TrimSpace(s.Critique.MissingInfo)
	}
	if missing != "" {
		lower := strings.ToLower(missing)
		if strings.Contains(lower, "citation") || strings.Contains(lower, "reference") {
			return "authoritative sources " + s.Question
		}
		return missing
	}
	if s.TemplateFeedback != nil && !s.TemplateFeedback.Followed {
		return s.Question
	}
	return ""
}

// mergeByLink appends extra to base, keeping the first entry seen for each
// non-empty link. Entries without a link are always kept.
func mergeByLink(base, extra []retrieval.Result) []retrieval.Result {
	out := make([]retrieval.Result, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]retrieval.Result{base, extra} {
		for _, r := range list {
			if r.Link != "" {
				if seen[r.Link] {
					continue
				}
				seen[r.Link] = true
			}
			out = append(out, r)
		}
	}
	return out
}
