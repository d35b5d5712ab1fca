package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchRequestShape(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("got %s %s, want POST /search", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		// URL left empty so no enrichment fetch happens in tests.
		json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "특허 판례 동향", Content: "최근 대법원은..."},
			{Title: "해설", Content: "전문가 해설"},
		}})
	}))
	defer srv.Close()

	c := NewClient("tvly-test", srv.URL, 3)
	results, err := c.Search(context.Background(), "최근 특허 침해 판례")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.APIKey != "tvly-test" || got.Query != "최근 특허 침해 판례" || got.MaxResults != 3 {
		t.Errorf("request = %+v, want key/query/max passed through", got)
	}
	if len(results) != 2 || results[0].Title != "특허 판례 동향" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("tvly-test", srv.URL, 3)
	_, err := c.Search(context.Background(), "질의")
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("key", "", 0)
	if c.baseURL != "https://api.tavily.com" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.maxResults != 5 {
		t.Errorf("maxResults = %d, want 5", c.maxResults)
	}

	c = NewClient("key", "https://example.com/", 2)
	if c.baseURL != "https://example.com" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
}

func TestEnrichUnreachablePageKeepsSnippet(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	results := []Result{{Title: "제목", URL: deadURL, Content: "원본 요약"}}
	enrichTopHit(results)
	if results[0].Content != "원본 요약" {
		t.Errorf("content = %q, want original snippet kept", results[0].Content)
	}
}

func TestEnrichSkipsEmptyInput(t *testing.T) {
	enrichTopHit(nil)
	results := []Result{{Title: "제목", Content: "요약"}}
	enrichTopHit(results)
	if results[0].Content != "요약" {
		t.Errorf("content = %q, want untouched without URL", results[0].Content)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"가나다라", 2, "가나"},
		{"가나다라", 10, "가나다라"},
		{"abc", 3, "abc"},
		{"가나다라", 0, ""},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.s, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}
