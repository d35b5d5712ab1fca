package llm

import (
	"context"
	"fmt"
	"strings"
)

// Gateway binds a Provider to a concrete model and normalizes its output.
// Every chat completion consumed by the service passes through here, so
// whitespace and markdown code fences never leak into downstream parsing.
type Gateway struct {
	provider  Provider
	model     string
	maxTokens int
}

// NewGateway wraps a provider. maxTokens of 0 leaves the limit to the model.
func NewGateway(provider Provider, model string, maxTokens int) *Gateway {
	return &Gateway{provider: provider, model: model, maxTokens: maxTokens}
}

// Provider exposes the underlying provider for callers that need raw access.
func (g *Gateway) Provider() Provider { return g.provider }

// Complete sends a system+user exchange and returns the stripped assistant
// text. An empty system prompt sends the user message alone.
func (g *Gateway) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: user})
	return g.Messages(ctx, msgs, temperature)
}

// Messages sends a prepared message list and returns the stripped text.
func (g *Gateway) Messages(ctx context.Context, msgs []Message, temperature float64) (string, error) {
	resp, err := g.provider.Chat(ctx, ChatRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return StripFences(resp.Content), nil
}

// WithTools sends a message list with bound tool schemas. The response
// content is stripped; tool calls pass through untouched.
func (g *Gateway) WithTools(ctx context.Context, msgs []Message, tools []ToolSchema, temperature float64) (*ChatResponse, error) {
	resp, err := g.provider.Chat(ctx, ChatRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
		Tools:       tools,
	})
	if err != nil {
		return nil, err
	}
	resp.Content = StripFences(resp.Content)
	return resp, nil
}

// EmbedOne embeds a single text.
func (g *Gateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding for text")
	}
	return vecs[0], nil
}

// Embed embeds a batch of texts.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.provider.Embed(ctx, texts)
}

// StripFences trims whitespace and removes an enclosing triple-backtick
// fence, with or without a language tag. Unfenced text passes through
// unchanged, so re-applying it to already-stripped output is a no-op.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	rest := s[3:]
	// Drop a language tag: everything up to the first newline, provided the
	// tag itself contains no spaces or backticks.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || (!strings.ContainsAny(tag, " `")) {
			rest = rest[nl+1:]
		}
	}

	rest = strings.TrimSuffix(strings.TrimSpace(rest), "```")
	return strings.TrimSpace(rest)
}
