package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/itchyny/gojq"
	"golang.org/x/time/rate"
)

const (
	coinGeckoEndpoint = "https://api.coingecko.com/api/v3/simple/price"

	// DefaultPriceExpr extracts the quote from a simple-price payload.
	DefaultPriceExpr = ".[$coin][$currency]"
)

// PriceConfig configures the CoinGecko price lookup.
type PriceConfig struct {
	Endpoint          string
	Currency          string // vs_currency, default usd
	Expr              string // jq expression over the payload, sees $coin and $currency
	RequestsPerSecond float64
	Timeout           time.Duration
}

// CoinGecko looks up spot prices through the CoinGecko simple-price API.
type CoinGecko struct {
	endpoint string
	currency string
	code     *gojq.Code
	client   *http.Client
	limiter  *rate.Limiter
}

// NewCoinGecko builds a price lookup from cfg, compiling the jq expression up front.
func NewCoinGecko(cfg PriceConfig) (*CoinGecko, error) {
	expr := cfg.Expr
	if expr == "" {
		expr = DefaultPriceExpr
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid price expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query, gojq.WithVariables([]string{"$coin", "$currency"}))
	if err != nil {
		return nil, fmt.Errorf("compiling price expression %q: %w", expr, err)
	}

	c := &CoinGecko{
		endpoint: cfg.Endpoint,
		currency: strings.ToLower(cfg.Currency),
		code:     code,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  newLimiter(cfg.RequestsPerSecond),
	}
	if c.endpoint == "" {
		c.endpoint = coinGeckoEndpoint
	}
	if c.currency == "" {
		c.currency = "usd"
	}
	if cfg.Timeout <= 0 {
		c.client.Timeout = 10 * time.Second
	}
	return c, nil
}

// PriceLookup resolves query to a coin id and returns its formatted quote.
// ok is false when the subject cannot be resolved or the payload has no quote.
func (c *CoinGecko) PriceLookup(ctx context.Context, query string) (string, bool, error) {
	id := CoinID(query)
	if id == "" {
		return "", false, nil
	}

	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", c.currency)
	endpoint := c.endpoint + "?" + params.Encode()

	resp, err := doWithRetry(ctx, c.client, c.limiter, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return "", false, fmt.Errorf("coingecko: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("coingecko http %d", resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", false, fmt.Errorf("coingecko: decoding response: %w", err)
	}

	iter := c.code.Run(payload, id, c.currency)
	v, ok := iter.Next()
	if !ok {
		return "", false, nil
	}
	if err, isErr := v.(error); isErr {
		return "", false, fmt.Errorf("coingecko: jq error: %w", err)
	}
	amount, isNum := v.(float64)
	if !isNum {
		return "", false, nil
	}
	return fmt.Sprintf("%s price: %s", id, c.formatAmount(amount)), true, nil
}

func (c *CoinGecko) formatAmount(amount float64) string {
	digits := humanize.CommafWithDigits(amount, 2)
	if c.currency == "usd" {
		return "$" + digits + " USD"
	}
	return digits + " " + strings.ToUpper(c.currency)
}

var coinSymbols = map[string]string{
	"btc":   "bitcoin",
	"eth":   "ethereum",
	"sol":   "solana",
	"ada":   "cardano",
	"xrp":   "ripple",
	"doge":  "dogecoin",
	"dot":   "polkadot",
	"ltc":   "litecoin",
	"bnb":   "binancecoin",
	"usdt":  "tether",
	"usdc":  "usd-coin",
	"avax":  "avalanche-2",
	"matic": "matic-network",
	"link":  "chainlink",
	"trx":   "tron",
}

var priceStopWords = map[string]bool{
	"price": true, "prices": true, "of": true, "the": true, "current": true,
	"what": true, "is": true, "today": true, "usd": true, "in": true,
	"value": true, "latest": true, "now": true, "coin": true, "token": true,
	"for": true, "spot": true, "right": true, "a": true,
}

// CoinID maps free text such as "BTC price" or "current price of Ethereum"
// to a CoinGecko coin id. It returns "" when nothing remains after filtering.
func CoinID(query string) string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var kept []string
	for _, w := range words {
		if priceStopWords[w] {
			continue
		}
		if id, ok := coinSymbols[w]; ok {
			return id
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, "-")
}
