// Package websearch answers general questions through the Tavily search
// API, enriching the top hit with readable page text when the snippet is
// thinner than the page itself.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

const (
	requestTimeout = 10 * time.Second

	// contentRunes caps enriched page text so one verbose article cannot
	// flood the agent's context.
	contentRunes = 2000
)

// Result is one search hit surfaced to the agent.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Client queries the Tavily search endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// NewClient builds a search client. baseURL defaults to the public Tavily
// endpoint, maxResults to 5.
func NewClient(apiKey, baseURL string, maxResults int) *Client {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	if maxResults < 1 {
		maxResults = 5
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs one query and returns its hits in relevance order.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	enrichTopHit(sr.Results)
	return sr.Results, nil
}

// enrichTopHit swaps the first hit's snippet for the page's readable text
// when the page delivers more. Fetch or extraction failures keep the
// snippet.
func enrichTopHit(results []Result) {
	if len(results) == 0 || results[0].URL == "" {
		return
	}

	article, err := readability.FromURL(results[0].URL, requestTimeout)
	if err != nil {
		slog.Debug("websearch: page enrichment skipped", "url", results[0].URL, "error", err)
		return
	}

	text := strings.TrimSpace(article.TextContent)
	if utf8.RuneCountInString(text) > utf8.RuneCountInString(results[0].Content) {
		results[0].Content = truncateRunes(text, contentRunes)
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == n {
			return s[:i]
		}
		seen++
	}
	return s
}
