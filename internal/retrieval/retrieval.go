// Package retrieval provides the data-fetching tools used by the research workflow.
//
// Two tools exist: a web search returning ranked snippets and a price lookup
// returning a formatted quote. Steps call them directly through the WebSearcher
// and PriceLooker interfaces.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Result is a single retrieved item. An empty field means the value is absent.
type Result struct {
	Content string `json:"content,omitempty"`
	Link    string `json:"link,omitempty"`
}

// WebSearcher runs a text search and returns up to maxResults ranked snippets.
type WebSearcher interface {
	WebSearch(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// PriceLooker looks up a point value for the subject named in query.
// ok is false when no price is known for the subject.
type PriceLooker interface {
	PriceLookup(ctx context.Context, query string) (price string, ok bool, err error)
}

// ErrMissingAPIKey is returned by backends that need a key when none is configured.
var ErrMissingAPIKey = errors.New("missing API key")

// Search backend names accepted by NewWebSearcher.
const (
	BackendDuckDuckGo = "duckduckgo"
	BackendBrave      = "brave"
	BackendTavily     = "tavily"
)

// SearchConfig selects and configures a search backend.
type SearchConfig struct {
	Backend           string
	APIKey            string
	Depth             string  // tavily only: basic or advanced
	RequestsPerSecond float64 // 0 disables pacing
	Timeout           time.Duration
}

// NewWebSearcher builds the backend named in cfg.Backend.
func NewWebSearcher(cfg SearchConfig) (WebSearcher, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout <= 0 {
		client.Timeout = 15 * time.Second
	}
	limiter := newLimiter(cfg.RequestsPerSecond)

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendDuckDuckGo:
		return &DuckDuckGo{client: client, limiter: limiter, endpoint: duckDuckGoEndpoint}, nil
	case BackendBrave:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("brave: %w", ErrMissingAPIKey)
		}
		return &Brave{APIKey: cfg.APIKey, client: client, limiter: limiter, endpoint: braveEndpoint}, nil
	case BackendTavily:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("tavily: %w", ErrMissingAPIKey)
		}
		depth := cfg.Depth
		if depth == "" {
			depth = "basic"
		}
		return &Tavily{APIKey: cfg.APIKey, Depth: depth, client: client, limiter: limiter, endpoint: tavilyEndpoint}, nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

// newLimiter returns a limiter allowing rps requests per second, or nil for no pacing.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// doWithRetry paces the request through limiter and retries on 429 with a
// doubling delay capped at 30 seconds.
func doWithRetry(ctx context.Context, client *http.Client, limiter *rate.Limiter, newReq func() (*http.Request, error)) (*http.Response, error) {
	delay := 1 * time.Second
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// snippetContent joins a result title and snippet into one content string.
func snippetContent(title, snippet string) string {
	title = strings.TrimSpace(title)
	snippet = strings.TrimSpace(snippet)
	switch {
	case title == "":
		return snippet
	case snippet == "":
		return title
	default:
		return title + ": " + snippet
	}
}

// clampResults normalizes maxResults to a usable bound.
func clampResults(maxResults int) int {
	if maxResults <= 0 {
		return 5
	}
	return maxResults
}
