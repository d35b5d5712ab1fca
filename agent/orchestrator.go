// Package agent routes user queries through an LLM tool-calling loop and
// shapes tool output into the three response envelopes served over HTTP.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jaekyeom/clauselens/llm"
)

// contractKeywords force the file-required guard: questions touching these
// topics are meaningless without an uploaded contract.
var contractKeywords = []string{"계약", "시뮬레이션", "해지"}

// defaultSimulationQuery fills in when the model calls the simulation tool
// without arguments.
const defaultSimulationQuery = "계약서 시뮬레이션"

// Orchestrator drives one query through route, dispatch and format.
type Orchestrator struct {
	gw            *llm.Gateway
	registry      *Registry
	formatPrompt  string
	routerTemp    float64
	formatterTemp float64
}

// NewOrchestrator builds the router. routerTemp should stay low so tool
// selection is deterministic; formatterTemp shapes the final prose.
func NewOrchestrator(gw *llm.Gateway, registry *Registry, formatPrompt string, routerTemp, formatterTemp float64) *Orchestrator {
	return &Orchestrator{
		gw:            gw,
		registry:      registry,
		formatPrompt:  formatPrompt,
		routerTemp:    routerTemp,
		formatterTemp: formatterTemp,
	}
}

// Answer resolves one user query into a response envelope. filePath is the
// session's uploaded contract, empty when none. Answer never returns an
// error: every failure terminates in an error dialogue.
func (o *Orchestrator) Answer(ctx context.Context, query, filePath string) any {
	if filePath == "" && containsAny(query, contractKeywords) {
		return ErrorDialogue(
			"계약서 분석을 위해서는 먼저 PDF 파일을 업로드해 주세요.",
			"PDF file required for contract analysis",
		)
	}
	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return ErrorDialogue(
				fmt.Sprintf("PDF 파일을 열 수 없습니다: %v", err),
				fmt.Sprintf("Could not open PDF file: %v", err),
			)
		}
		f.Close()
	}

	msgs := []llm.Message{
		{Role: "system", Content: o.systemPrompt(filePath != "")},
		{Role: "user", Content: query},
	}

	resp, err := o.gw.WithTools(ctx, msgs, o.registry.Schemas(), o.routerTemp)
	if err != nil {
		return ErrorDialogue(fmt.Sprintf("시스템 오류: %v", err), err.Error())
	}
	msgs = append(msgs, llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

	var lastTool string
	for _, call := range resp.ToolCalls {
		tool, ok := o.registry.Get(call.Name)
		if !ok {
			slog.Warn("agent: model requested unknown tool", "tool", call.Name)
			continue
		}

		args := decodeArgs(call.Arguments)
		if call.Name == toolSimulate && args.Query == "" {
			args.Query = defaultSimulationQuery
		}
		if tool.RequiresFile {
			args.FilePath = filePath
		}

		slog.Info("agent: executing tool", "tool", call.Name)
		msgs = append(msgs, llm.Message{
			Role:       "tool",
			Content:    o.registry.Execute(ctx, call.Name, args),
			Name:       call.Name,
			ToolCallID: call.ID,
		})
		lastTool = call.Name
	}

	if lastTool == "" {
		return SuccessDialogue(o.format(ctx, resp.Content))
	}

	env := ExtractResponse(msgs)

	// Cases and simulation envelopes carry their own layout. Dialogue built
	// from the remaining tools reads better after a formatting pass.
	switch lastTool {
	case toolFindCase, toolSimulate:
		return env
	default:
		if sd, ok := env.(SimpleDialogue); ok && sd.Status == "success" {
			sd.Response = o.format(ctx, sd.Response)
			return sd
		}
		return env
	}
}

// format renders raw tool or assistant text into user-facing prose.
func (o *Orchestrator) format(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return "결과를 처리 중입니다."
	}
	out, err := o.gw.Complete(ctx, o.formatPrompt, text, o.formatterTemp)
	if err != nil {
		slog.Error("agent: response formatting failed", "error", err)
		return fmt.Sprintf("결과 포맷팅 실패: %v", err)
	}
	return out
}

// systemPrompt enumerates the tools and their selection rules and declares
// whether a contract is attached, keeping tool choice deterministic at low
// temperature.
func (o *Orchestrator) systemPrompt(fileAttached bool) string {
	var b strings.Builder
	b.WriteString("당신은 계약서 분석과 판례 검색을 돕는 법률 어시스턴트입니다.\n\n")
	b.WriteString("사용 가능한 도구:\n")
	for _, schema := range o.registry.Schemas() {
		fmt.Fprintf(&b, "- %s: %s\n", schema.Name, schema.Description)
	}
	b.WriteString("\n규칙:\n")
	b.WriteString("- 판례를 찾는 질문에는 find_case_tool을 사용합니다.\n")
	b.WriteString("- 계약 분쟁이나 해지 상황 시뮬레이션 요청에는 simulate_dispute_tool을 사용합니다.\n")
	b.WriteString("- 업로드된 계약서의 독소조항 분석 요청에는 find_toxic_clauses_tool을 사용합니다.\n")
	b.WriteString("- 계약서나 판례와 무관한 일반 질문에는 web_search_tool을 사용합니다.\n")
	if fileAttached {
		b.WriteString("\n현재 세션에 계약서 PDF 파일이 업로드되어 있습니다.")
	} else {
		b.WriteString("\n현재 세션에 업로드된 계약서 파일이 없습니다.")
	}
	return b.String()
}

func decodeArgs(arguments string) Args {
	var args Args
	if arguments == "" {
		return args
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		slog.Warn("agent: undecodable tool arguments", "error", err)
	}
	return args
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
