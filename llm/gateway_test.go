package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello", "hello"},
		{"surrounding whitespace", "  hello \n", "hello"},
		{"plain fence", "```\n[1, 2]\n```", "[1, 2]"},
		{"json fence", "```json\n{\"a\": 1}\n```", "{\"a\": 1}"},
		{"fence on one line", "```[1]```", "[1]"},
		{"fence with padding", "\n\n```json\n[]\n```\n", "[]"},
		{"korean content", "```\n독소조항 분석 결과\n```", "독소조항 분석 결과"},
		{"no closing fence", "```partial", "partial"},
		{"empty", "", ""},
		{"only fences", "``````", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripFences(tt.in)
			if got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripFencesIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"k\": \"v\"}\n```",
		"plain answer",
		"  padded  ",
	}
	for _, in := range inputs {
		once := StripFences(in)
		twice := StripFences(once)
		if once != twice {
			t.Errorf("StripFences not stable for %q: first %q, second %q", in, once, twice)
		}
	}
}

// fakeProvider implements Provider with function fields for tests.
type fakeProvider struct {
	chatFn  func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return f.chatFn(ctx, req)
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f.embedFn(ctx, texts)
}

func TestGatewayCompleteStripsFences(t *testing.T) {
	var gotReq ChatRequest
	fake := &fakeProvider{
		chatFn: func(_ context.Context, req ChatRequest) (*ChatResponse, error) {
			gotReq = req
			return &ChatResponse{Content: "```json\n[{\"독소조항\": \"x\"}]\n```"}, nil
		},
	}

	gw := NewGateway(fake, "test-model", 1500)
	out, err := gw.Complete(context.Background(), "system prompt", "user text", 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `[{"독소조항": "x"}]` {
		t.Errorf("output = %q, want fence-stripped JSON", out)
	}

	if gotReq.Model != "test-model" {
		t.Errorf("model = %q, want test-model", gotReq.Model)
	}
	if gotReq.MaxTokens != 1500 {
		t.Errorf("max tokens = %d, want 1500", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("messages = %+v, want system+user pair", gotReq.Messages)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotReq.Temperature)
	}
}

func TestGatewayCompleteNoSystem(t *testing.T) {
	fake := &fakeProvider{
		chatFn: func(_ context.Context, req ChatRequest) (*ChatResponse, error) {
			if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
				t.Errorf("messages = %+v, want single user message", req.Messages)
			}
			return &ChatResponse{Content: "ok"}, nil
		},
	}
	gw := NewGateway(fake, "m", 0)
	if _, err := gw.Complete(context.Background(), "", "hello", 1.0); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestGatewayEmbedOne(t *testing.T) {
	fake := &fakeProvider{
		embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
			if len(texts) != 1 || texts[0] != "query" {
				t.Errorf("texts = %v, want [query]", texts)
			}
			return [][]float32{{0.1, 0.2, 0.3}}, nil
		},
	}
	gw := NewGateway(fake, "m", 0)
	vec, err := gw.EmbedOne(context.Background(), "query")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d, want 3", len(vec))
	}
}

func TestGatewayEmbedOneEmpty(t *testing.T) {
	fake := &fakeProvider{
		embedFn: func(_ context.Context, texts []string) ([][]float32, error) {
			return [][]float32{}, nil
		},
	}
	gw := NewGateway(fake, "m", 0)
	if _, err := gw.EmbedOne(context.Background(), "query"); err == nil {
		t.Fatal("expected error for empty embedding response")
	}
}

// TestChatToolCallWire drives the compat client against a stub server and
// checks the tool schemas go out and the tool calls come back.
func TestChatToolCallWire(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		var body struct {
			Temperature *float64 `json:"temperature"`
			Tools       []struct {
				Type     string `json:"type"`
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body.Temperature == nil {
			t.Error("temperature missing from wire request")
		} else if *body.Temperature != 0.1 {
			t.Errorf("temperature = %v, want 0.1", *body.Temperature)
		}
		if len(body.Tools) != 1 || body.Tools[0].Function.Name != "find_case_tool" {
			t.Errorf("tools = %+v, want one find_case_tool", body.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "find_case_tool", "arguments": "{\"query\": \"판례\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"model": "test"
		}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "m", BaseURL: srv.URL})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: "user", Content: "q"}},
		Temperature: 0.1,
		Tools: []ToolSchema{{
			Name:        "find_case_tool",
			Description: "판례 검색",
			Parameters: Schema{
				Type:       "object",
				Properties: map[string]Property{"query": {Type: "string"}},
				Required:   []string{"query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "find_case_tool" {
		t.Errorf("tool call = %+v, want call_1/find_case_tool", tc)
	}
	if tc.Arguments != `{"query": "판례"}` {
		t.Errorf("arguments = %q", tc.Arguments)
	}
}

// TestEmbedOrdering verifies embeddings are reordered by the index field.
func TestEmbedOrdering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Return data out of order; the client must sort by index.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"embedding": [2.0], "index": 1},
				{"embedding": [1.0], "index": 0}
			]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "m", BaseURL: srv.URL})
	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1.0 || vecs[1][0] != 2.0 {
		t.Errorf("vectors = %v, want [[1] [2]]", vecs)
	}
}
