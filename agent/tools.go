package agent

import (
	"context"
	"os"

	"github.com/jaekyeom/clauselens/analysis"
	"github.com/jaekyeom/clauselens/caselaw"
	"github.com/jaekyeom/clauselens/llm"
	"github.com/jaekyeom/clauselens/parser"
	"github.com/jaekyeom/clauselens/websearch"
)

// Tool names as the router sees them.
const (
	toolFindCase  = "find_case_tool"
	toolSimulate  = "simulate_dispute_tool"
	toolWebSearch = "web_search_tool"
	toolFindToxic = "find_toxic_clauses_tool"
)

// WebSearcher runs a web search for questions outside the contract domain.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// NewFindCaseTool looks up the precedent closest to the query and formats
// it. Failures surface as registry-folded errors.
func NewFindCaseTool(retriever *caselaw.Retriever, extractor *analysis.Extractor) Tool {
	return Tool{
		Name:        toolFindCase,
		Description: "질문과 가장 유사한 판례를 찾아 제목/요약/주요 쟁점/판결로 정리해 돌려줍니다. 판례 검색 요청에 사용하세요.",
		Parameters:  queryOnlySchema("검색할 판례 주제"),
		Run: func(ctx context.Context, args Args) (any, error) {
			if err := retriever.Load(ctx); err != nil {
				return nil, err
			}
			match, err := retriever.MostSimilar(ctx, args.Query)
			if err != nil {
				return nil, err
			}
			formatted := extractor.FormatCase(ctx, match.Case.Value)
			return map[string]any{"formatted_cases": []string{formatted}}, nil
		},
	}
}

// NewSimulateDisputeTool runs the dispute simulation over the session file.
// Every failure folds into an error payload; when the final synthesis stage
// degraded to fallback scenarios, those win over the stage error.
func NewSimulateDisputeTool(sim *Simulator, caseDBPath string) Tool {
	return Tool{
		Name:         toolSimulate,
		Description:  "업로드된 계약서를 분석해 분쟁 상황을 역할극 대화로 시뮬레이션합니다. 계약 분쟁이나 해지 시뮬레이션 요청에 사용하세요.",
		Parameters:   queryOnlySchema("시뮬레이션할 분쟁 상황"),
		RequiresFile: true,
		Run: func(ctx context.Context, args Args) (any, error) {
			if args.FilePath == "" {
				return map[string]string{"error": "계약서 파일이 제공되지 않았습니다. 파일을 업로드하세요."}, nil
			}
			if _, err := os.Stat(caseDBPath); err != nil {
				return map[string]string{"error": "필요한 파일을 찾을 수 없습니다: " + caseDBPath}, nil
			}

			state := sim.Run(ctx, args.Query, args.FilePath, "")
			if state.Err != "" && len(state.Simulations) == 0 {
				return map[string]string{"error": state.Err}, nil
			}
			return map[string]any{
				"simulations":            state.Simulations,
				"relevant_toxic_clauses": state.RelevantToxicClauses,
				"selected_cases":         state.SelectedCases,
			}, nil
		},
	}
}

// NewFindToxicClausesTool extracts toxic clauses from the session file with
// precedents attached. Failures fold into per-call error entries so the
// model always receives a well-formed array.
func NewFindToxicClausesTool(parsers *parser.Registry, extractor *analysis.Extractor, retriever *caselaw.Retriever) Tool {
	return Tool{
		Name:         toolFindToxic,
		Description:  "업로드된 계약서에서 독소조항을 추출하고 각 조항에 관련 판례를 붙입니다. 계약서 조항 분석 요청에 사용하세요.",
		Parameters:   queryOnlySchema("분석 관점이나 질문"),
		RequiresFile: true,
		Run: func(ctx context.Context, args Args) (any, error) {
			if args.FilePath == "" {
				return []map[string]string{{"error": "계약서 파일이 없습니다. 파일을 먼저 업로드해주세요."}}, nil
			}

			text, err := parseDocument(ctx, parsers, args.FilePath)
			if err != nil {
				return []map[string]string{{"error": "독소조항 분석 오류: " + err.Error()}}, nil
			}
			if text == "" {
				return []map[string]string{{"error": "문서에서 텍스트를 추출할 수 없습니다."}}, nil
			}
			if err := retriever.Load(ctx); err != nil {
				return []map[string]string{{"error": "판례 데이터베이스 로딩 오류: " + err.Error()}}, nil
			}

			clauses, err := extractor.Extract(ctx, text)
			if err != nil {
				return []map[string]string{{"error": "독소조항 분석 오류: " + err.Error()}}, nil
			}
			if len(clauses) == 0 {
				return []map[string]string{{"message": "독소조항을 찾을 수 없습니다."}}, nil
			}
			return clauses, nil
		},
	}
}

// NewWebSearchTool answers general questions through the search client.
func NewWebSearchTool(searcher WebSearcher) Tool {
	return Tool{
		Name:        toolWebSearch,
		Description: "계약서나 판례와 무관한 일반 질문을 웹에서 검색합니다.",
		Parameters:  queryOnlySchema("검색어"),
		Run: func(ctx context.Context, args Args) (any, error) {
			results, err := searcher.Search(ctx, args.Query)
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results}, nil
		},
	}
}

func queryOnlySchema(description string) llm.Schema {
	return llm.Schema{
		Type: "object",
		Properties: map[string]llm.Property{
			"query": {Type: "string", Description: description},
		},
		Required: []string{"query"},
	}
}
