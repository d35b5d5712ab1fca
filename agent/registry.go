package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaekyeom/clauselens/llm"
)

// Args are the normalized tool arguments. FilePath is injected by the
// orchestrator for file-requiring tools; models never control it.
type Args struct {
	Query    string `json:"query"`
	FilePath string `json:"-"`
}

// Tool is one callable the router may pick.
type Tool struct {
	Name         string
	Description  string
	Parameters   llm.Schema
	RequiresFile bool
	Run          func(ctx context.Context, args Args) (any, error)
}

// Registry holds the tool set and dispatches calls by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register installs a tool, replacing any existing one with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Schemas lists the bound tool schemas in registration order.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return schemas
}

// Execute runs a tool and returns its JSON-encoded result for the tool
// message. Failures fold into tool-specific error payloads instead of
// propagating, so the conversation always gets a tool message back.
func (r *Registry) Execute(ctx context.Context, name string, args Args) string {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool %s", name)
	}

	result, err := t.Run(ctx, args)
	if err != nil {
		slog.Error("agent: tool failed", "tool", name, "error", err)
		return foldToolError(name, err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("agent: tool result not serializable", "tool", name, "error", err)
		return foldToolError(name, err)
	}
	return string(data)
}

// foldToolError renders a failure as tool output. Simulation failures get a
// structured apology the client renders as dialogue; everything else gets
// the plain Error prefix.
func foldToolError(name string, err error) string {
	if name != toolSimulate {
		return fmt.Sprintf("Error: %v", err)
	}
	payload := map[string]any{
		"simulations": []string{
			fmt.Sprintf("계약서 분석 중 오류가 발생했습니다: %v", err),
			"파일이 올바르게 업로드되었는지 확인하시고, 다시 시도해 주세요.",
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
