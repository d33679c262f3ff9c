package reasoning

import (
	"context"

	"github.com/vinayprograms/hekmatica/internal/retrieval"
)

// Service is the reasoning service contract. Every call is a synchronous
// request/response; failures are returned, never retried here.
type Service interface {
	Clarify(ctx context.Context, question string) (*Clarification, error)
	Subqueries(ctx context.Context, question, clarificationDetails string) ([]string, error)
	Plan(ctx context.Context, question string, subqueries []string) (*Plan, error)
	Rank(ctx context.Context, question string, subqueries []string, results []retrieval.Result, topK int) ([]RankedResult, error)
	Answer(ctx context.Context, question string, context []ContextItem) (*Answer, error)
	Critique(ctx context.Context, question, renderedAnswer string) (*Critique, error)
}
