package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const duckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo searches through the DuckDuckGo lite HTML interface. No key is needed.
type DuckDuckGo struct {
	client   *http.Client
	limiter  *rate.Limiter
	endpoint string
}

// WebSearch posts the query to the lite page and scrapes the result table.
func (d *DuckDuckGo) WebSearch(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}
	maxResults = clampResults(maxResults)

	form := url.Values{}
	form.Set("q", query)

	resp, err := doWithRetry(ctx, d.client, d.limiter, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	return parseLiteResults(resp.Body, maxResults)
}

type liteLink struct {
	href  string
	title string
}

// parseLiteResults pairs result-link anchors with result-snippet cells in
// document order.
func parseLiteResults(r io.Reader, maxResults int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parsing html: %w", err)
	}

	var links []liteLink
	var snippets []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				links = append(links, liteLink{href: attr(n, "href"), title: nodeText(n)})
			case n.Data == "td" && hasClass(n, "result-snippet"):
				snippets = append(snippets, nodeText(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	results := make([]Result, 0, len(links))
	for i, l := range links {
		link := resolveLiteLink(l.href)
		if link == "" || l.title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = snippets[i]
		}
		results = append(results, Result{Content: snippetContent(l.title, snippet), Link: link})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// resolveLiteLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resolveLiteLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	return u.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText returns the whitespace-collapsed text content of n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
