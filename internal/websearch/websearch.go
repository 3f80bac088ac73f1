package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielpatrickdp/buildstreak-agent/internal/config"
	"github.com/danielpatrickdp/buildstreak-agent/internal/telemetry"
)

// #region types

// Result holds a single search result.
type Result struct {
	Title       string
	URL         string
	Description string
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// ErrNoKey is returned by New when no API key is configured.
var ErrNoKey = errors.New("websearch: BRAVE_API_KEY not set")

// Config holds web search parameters.
type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
	Delay   time.Duration // pause callers keep between consecutive searches
}

// #endregion types

// #region config

// ConfigFrom converts the env configuration.
func ConfigFrom(c config.Search) Config {
	return Config{URL: c.BraveURL, Key: c.BraveKey, Timeout: c.Timeout, Delay: c.Delay}
}

// New builds a breaker-wrapped Brave searcher.
func New(cfg Config, client *http.Client) (Searcher, error) {
	if cfg.Key == "" {
		return nil, ErrNoKey
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return WithBreaker(NewBrave(cfg.URL, cfg.Key, client)), nil
}

// #endregion config

// #region brave

// Brave queries the Brave web search API.
type Brave struct {
	endpoint string
	key      string
	client   *http.Client
	policy   *bluemonday.Policy
}

// NewBrave creates a Brave client for endpoint.
func NewBrave(endpoint, key string, client *http.Client) *Brave {
	return &Brave{endpoint: endpoint, key: key, client: client, policy: bluemonday.StrictPolicy()}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search returns at most count results. A non-2xx response is an error.
func (b *Brave) Search(ctx context.Context, query string, count int) (results []Result, err error) {
	ctx, span := telemetry.Start(ctx, "websearch.search", attribute.String("search.query", query))
	defer func() { telemetry.End(span, err) }()

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("source", "web")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.key)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("brave: status %d", resp.StatusCode)
	}

	var body braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	for _, r := range body.Web.Results {
		if count > 0 && len(results) >= count {
			break
		}
		results = append(results, Result{
			Title:       b.clean(r.Title),
			URL:         r.URL,
			Description: b.clean(r.Description),
		})
	}
	return results, nil
}

// clean strips the highlight markup Brave puts in titles and snippets.
func (b *Brave) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(b.policy.Sanitize(s)))
}

// #endregion brave

// #region format

// Summarize condenses the top three results into "title: description" lines,
// cut to max characters.
func Summarize(results []Result, max int) string {
	if len(results) == 0 {
		return ""
	}
	if len(results) > 3 {
		results = results[:3]
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.Title + ": " + r.Description
	}
	out := strings.Join(lines, "\n")
	if r := []rune(out); max > 0 && len(r) > max {
		out = string(r[:max])
	}
	return out
}

// #endregion format
