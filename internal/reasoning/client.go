package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

// Client implements Service on top of an LLM provider. Individual operations
// can be routed to a different provider (e.g. a cheaper model for ranking).
type Client struct {
	provider  llm.Provider
	overrides map[Operation]llm.Provider
	logger    *logging.Logger
}

// NewClient creates a client that sends every operation to provider.
func NewClient(provider llm.Provider) *Client {
	return &Client{
		provider:  provider,
		overrides: make(map[Operation]llm.Provider),
		logger:    logging.New().WithComponent("reasoning"),
	}
}

// SetOperationProvider routes op to p instead of the default provider.
func (c *Client) SetOperationProvider(op Operation, p llm.Provider) {
	if p == nil {
		delete(c.overrides, op)
		return
	}
	c.overrides[op] = p
}

func (c *Client) providerFor(op Operation) llm.Provider {
	if p, ok := c.overrides[op]; ok {
		return p
	}
	return c.provider
}

// call sends one system/user exchange and decodes the JSON reply into v.
func (c *Client) call(ctx context.Context, op Operation, system, user string, v any) error {
	start := time.Now()
	resp, err := c.providerFor(op).Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		c.logger.Error("reasoning call failed", map[string]interface{}{
			"op":    string(op),
			"error": err.Error(),
		})
		return fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("reasoning call", map[string]interface{}{
		"op":          string(op),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	if err := decodeJSON(resp.Content, v); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

// Clarify asks whether the question needs clarification before research.
func (c *Client) Clarify(ctx context.Context, question string) (*Clarification, error) {
	var out Clarification
	if err := c.call(ctx, OpClarify, clarifySystemPrompt, "QUESTION: "+question, &out); err != nil {
		return nil, err
	}
	out.Question = strings.TrimSpace(out.Question)
	return &out, nil
}

// Subqueries decomposes the question, taking any clarification into account.
func (c *Client) Subqueries(ctx context.Context, question, clarificationDetails string) ([]string, error) {
	var sb strings.Builder
	sb.WriteString("QUESTION: " + question + "\n")
	if strings.TrimSpace(clarificationDetails) != "" {
		sb.WriteString("CLARIFICATION: " + clarificationDetails + "\n")
	}

	var raw json.RawMessage
	if err := c.call(ctx, OpSubqueries, subqueriesSystemPrompt, sb.String(), &raw); err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var obj struct {
			Subqueries []string `json:"subqueries"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", OpSubqueries, ErrMalformedResponse, err)
		}
		list = obj.Subqueries
	}

	out := make([]string, 0, len(list))
	for _, q := range list {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

// Plan chooses the retrieval steps. Steps naming an unknown tool are dropped.
func (c *Client) Plan(ctx context.Context, question string, subqueries []string) (*Plan, error) {
	var sb strings.Builder
	sb.WriteString("QUESTION: " + question + "\n")
	if len(subqueries) > 0 {
		sb.WriteString("SUBQUERIES:\n")
		for _, q := range subqueries {
			sb.WriteString("- " + q + "\n")
		}
	}

	var raw struct {
		Steps []struct {
			Tool  string `json:"tool"`
			Query string `json:"query"`
		} `json:"steps"`
	}
	if err := c.call(ctx, OpPlan, planSystemPrompt, sb.String(), &raw); err != nil {
		return nil, err
	}

	plan := &Plan{Steps: make([]PlanStep, 0, len(raw.Steps))}
	for _, s := range raw.Steps {
		tool, err := ParseTool(s.Tool)
		if err != nil {
			c.logger.Warn("dropping plan step", map[string]interface{}{
				"tool":  s.Tool,
				"query": s.Query,
			})
			continue
		}
		query := strings.TrimSpace(s.Query)
		if query == "" {
			continue
		}
		plan.Steps = append(plan.Steps, PlanStep{Tool: tool, Query: query})
	}
	return plan, nil
}

// Rank scores results against the question and returns the best topK,
// highest relevance first.
func (c *Client) Rank(ctx context.Context, question string, subqueries []string, results []retrieval.Result, topK int) ([]RankedResult, error) {
	if len(results) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("QUESTION: " + question + "\n")
	if len(subqueries) > 0 {
		sb.WriteString("SUBQUERIES: " + strings.Join(subqueries, "; ") + "\n")
	}
	sb.WriteString("\nRESULTS:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, r.Content)
		if r.Link != "" {
			fmt.Fprintf(&sb, "    source: %s\n", r.Link)
		}
	}
	if topK > 0 {
		fmt.Fprintf(&sb, "\nReturn at most %d results.\n", topK)
	}

	var raw struct {
		Ranked []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"ranked"`
	}
	if err := c.call(ctx, OpRank, rankSystemPrompt, sb.String(), &raw); err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	ranked := make([]RankedResult, 0, len(raw.Ranked))
	for _, r := range raw.Ranked {
		idx := r.Index - 1
		if idx < 0 || idx >= len(results) || seen[idx] {
			continue
		}
		seen[idx] = true
		ranked = append(ranked, RankedResult{
			Content:        results[idx].Content,
			Link:           results[idx].Link,
			RelevanceScore: r.RelevanceScore,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// Answer synthesizes a structured answer from the context items.
func (c *Client) Answer(ctx context.Context, question string, items []ContextItem) (*Answer, error) {
	var sb strings.Builder
	sb.WriteString("QUESTION: " + question + "\n\nCONTEXT:\n")
	if len(items) == 0 {
		sb.WriteString("(no context was retrieved)\n")
	}
	for i, item := range items {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, item.Content)
		if item.Source != "" {
			fmt.Fprintf(&sb, "    source: %s\n", item.Source)
		}
	}

	var out Answer
	if err := c.call(ctx, OpAnswer, answerSystemPrompt, sb.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Critique reviews a rendered answer.
func (c *Client) Critique(ctx context.Context, question, renderedAnswer string) (*Critique, error) {
	user := "QUESTION: " + question + "\n\nANSWER:\n" + renderedAnswer
	var out Critique
	if err := c.call(ctx, OpCritique, critiqueSystemPrompt, user, &out); err != nil {
		return nil, err
	}
	out.MissingInfo = strings.TrimSpace(out.MissingInfo)
	return &out, nil
}
