// Package websearch provides public-web lookups for the full-mode portal
// assistant via the DuckDuckGo HTML endpoint.
package websearch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solacrm/backend/pkg/logger"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

const (
	endpoint    = "https://html.duckduckgo.com/html/"
	maxResults  = 5
	maxAttempts = 3
)

var (
	resultRe  = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	snippetRe = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
)

// Client scrapes the HTML results page. The endpoint has no token or quota
// handshake; transient failures are retried with backoff.
type Client struct {
	http *http.Client
	log  *logger.Logger
}

func NewClient(timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log.WithComponent("websearch"),
	}
}

// Search returns up to five results for the query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		results, err := c.fetch(ctx, query)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Debug("search attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, query string) ([]Result, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; solacrm/1.0)")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	return Parse(string(body)), nil
}

// Parse extracts results from the HTML results page.
func Parse(page string) []Result {
	links := resultRe.FindAllStringSubmatch(page, maxResults)
	snippets := snippetRe.FindAllStringSubmatch(page, maxResults)

	out := make([]Result, 0, len(links))
	for i, m := range links {
		r := Result{
			URL:   cleanURL(m[1]),
			Title: cleanText(m[2]),
		}
		if i < len(snippets) {
			r.Snippet = cleanText(snippets[i][1])
		}
		if r.Title == "" || r.URL == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// cleanURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func cleanURL(raw string) string {
	raw = html.UnescapeString(raw)
	if u, err := url.Parse(raw); err == nil {
		if target := u.Query().Get("uddg"); target != "" {
			if decoded, err := url.QueryUnescape(target); err == nil {
				return decoded
			}
		}
	}
	return raw
}

func cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(raw, "")))
}
