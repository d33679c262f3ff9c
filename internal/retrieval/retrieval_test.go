package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const liteHTML = `<html><body><table>
<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fbtc&amp;rut=x" class='result-link'>Bitcoin &amp; markets</a></td></tr>
<tr><td class='result-snippet'>Bitcoin rallied <b>again</b> today.</td></tr>
<tr><td><a rel="nofollow" href="https://news.example.org/eth" class='result-link'>Ethereum news</a></td></tr>
<tr><td class='result-snippet'>Upgrade ships.</td></tr>
<tr><td><a rel="nofollow" href="/settings" class='result-link'>Settings</a></td></tr>
</table></body></html>`

func TestDuckDuckGo_WebSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		r.ParseForm()
		gotQuery = r.FormValue("q")
		w.Write([]byte(liteHTML))
	}))
	defer srv.Close()

	d := &DuckDuckGo{client: srv.Client(), endpoint: srv.URL}
	results, err := d.WebSearch(context.Background(), "bitcoin news", 5)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if gotQuery != "bitcoin news" {
		t.Errorf("expected query 'bitcoin news', got %q", gotQuery)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Link != "https://example.com/btc" {
		t.Errorf("expected redirect to be unwrapped, got %q", results[0].Link)
	}
	if results[0].Content != "Bitcoin & markets: Bitcoin rallied again today." {
		t.Errorf("unexpected content %q", results[0].Content)
	}
	if results[1].Link != "https://news.example.org/eth" {
		t.Errorf("unexpected second link %q", results[1].Link)
	}
}

func TestDuckDuckGo_MaxResults(t *testing.T) {
	results, err := parseLiteResults(strings.NewReader(liteHTML), 1)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestDuckDuckGo_EmptyQuery(t *testing.T) {
	d := &DuckDuckGo{client: http.DefaultClient, endpoint: "http://unused"}
	if _, err := d.WebSearch(context.Background(), "  ", 3); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestBrave_WebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("missing subscription token header")
		}
		if r.URL.Query().Get("count") != "2" {
			t.Errorf("expected count=2, got %q", r.URL.Query().Get("count"))
		}
		w.Write([]byte(`{"web":{"results":[
			{"title":"A","url":"https://a.example","description":"first"},
			{"title":"B","url":"https://b.example","description":"second"},
			{"title":"C","url":"https://c.example","description":"third"}]}}`))
	}))
	defer srv.Close()

	b := &Brave{APIKey: "brave-key", client: srv.Client(), endpoint: srv.URL}
	results, err := b.WebSearch(context.Background(), "golang", 2)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "A: first" || results[0].Link != "https://a.example" {
		t.Errorf("unexpected first result %+v", results[0])
	}
}

func TestBrave_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := &Brave{APIKey: "k", client: srv.Client(), endpoint: srv.URL}
	if _, err := b.WebSearch(context.Background(), "q", 3); err == nil {
		t.Error("expected error on 401")
	}
}

func TestTavily_WebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["query"] != "eth roadmap" {
			t.Errorf("unexpected query %v", body["query"])
		}
		if body["search_depth"] != "advanced" {
			t.Errorf("unexpected depth %v", body["search_depth"])
		}
		w.Write([]byte(`{"results":[{"title":"Roadmap","url":"https://eth.example","content":"Next upgrades"}]}`))
	}))
	defer srv.Close()

	tv := &Tavily{APIKey: "k", Depth: "advanced", client: srv.Client(), endpoint: srv.URL}
	results, err := tv.WebSearch(context.Background(), "eth roadmap", 3)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(results) != 1 || results[0].Link != "https://eth.example" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestDoWithRetry_RetriesOnTooManyRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	b := &Brave{APIKey: "k", client: srv.Client(), limiter: newLimiter(100), endpoint: srv.URL}
	if _, err := b.WebSearch(context.Background(), "q", 3); err != nil {
		t.Fatalf("search error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestNewWebSearcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SearchConfig
		wantErr error
		wantAny bool
	}{
		{name: "default is duckduckgo", cfg: SearchConfig{}},
		{name: "brave without key", cfg: SearchConfig{Backend: "brave"}, wantErr: ErrMissingAPIKey},
		{name: "tavily without key", cfg: SearchConfig{Backend: "tavily"}, wantErr: ErrMissingAPIKey},
		{name: "brave with key", cfg: SearchConfig{Backend: "Brave", APIKey: "k"}},
		{name: "unknown backend", cfg: SearchConfig{Backend: "altavista"}, wantAny: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewWebSearcher(tt.cfg)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.wantAny:
				if err == nil {
					t.Error("expected error")
				}
			default:
				if err != nil || s == nil {
					t.Errorf("expected searcher, got %v", err)
				}
			}
		})
	}
}

func TestCoinID(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"BTC", "bitcoin"},
		{"current price of Ethereum", "ethereum"},
		{"ETH price in USD", "ethereum"},
		{"shiba-inu price", "shiba-inu"},
		{"price", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CoinID(tt.query); got != tt.want {
			t.Errorf("CoinID(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestCoinGecko_PriceLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "bitcoin" {
			w.Write([]byte(`{"bitcoin":{"usd":67000.12}}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewCoinGecko(PriceConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	price, ok, err := c.PriceLookup(context.Background(), "BTC price")
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if !ok {
		t.Fatal("expected a price")
	}
	if price != "bitcoin price: $67,000.12 USD" {
		t.Errorf("unexpected price %q", price)
	}

	_, ok, err = c.PriceLookup(context.Background(), "notacoin")
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if ok {
		t.Error("expected no price for unknown coin")
	}
}

func TestCoinGecko_UnresolvableQuerySkipsRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c, _ := NewCoinGecko(PriceConfig{Endpoint: srv.URL})
	_, ok, err := c.PriceLookup(context.Background(), "the price")
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
	if calls != 0 {
		t.Errorf("expected no request, got %d", calls)
	}
}

func TestNewCoinGecko_InvalidExpr(t *testing.T) {
	if _, err := NewCoinGecko(PriceConfig{Expr: ".[["}); err == nil {
		t.Error("expected error for invalid jq expression")
	}
}
