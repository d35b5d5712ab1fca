package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jaekyeom/clauselens/llm"
)

// simulationPattern splits one role-played scenario into its labelled
// parts. Values may be quoted; the labels themselves are fixed by the
// simulate prompt.
var simulationPattern = regexp.MustCompile(`(?s)상황:\s*(.*?)\s*사용자:\s*"?(.*?)"?\s*상담원:\s*"?(.*?)"?\s*$`)

// ExtractResponse shapes a conversation trail into a response envelope. The
// newest tool result wins; with none, the newest assistant text is returned
// as a plain dialogue.
func ExtractResponse(msgs []llm.Message) any {
	if len(msgs) == 0 {
		return ErrorDialogue("응답을 생성하지 못했습니다.", "No response generated")
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != "tool" || m.Content == "" {
			continue
		}

		var payload any
		if err := json.Unmarshal([]byte(m.Content), &payload); err != nil {
			return ProcessFormattedCases(m.Content)
		}
		switch m.Name {
		case toolFindCase:
			return processFindCaseResult(payload, m.Content)
		case toolSimulate:
			return processSimulationResult(payload)
		case toolWebSearch:
			return processWebSearchResult(payload, m.Content)
		default:
			return SuccessDialogue(prettyJSON(payload))
		}
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		if m := msgs[i]; m.Role == "assistant" && m.Content != "" {
			return SuccessDialogue(m.Content)
		}
	}

	return ErrorDialogue(
		"응답을 생성하지 못했습니다. 다른 질문을 시도하거나, 계약서 관련 질문인 경우 '계약 해지 조항 분석해줘'와 같이 더 구체적으로 질문해 보세요.",
		"No valid response content found",
	)
}

// ProcessFormattedCases parses the 제목/요약/주요 쟁점/판결 layout produced by
// the case formatter into a cases envelope. The title runs to the end of
// its line, summary and key points to the next blank line, the judgement to
// the end. Text carrying none of the labels becomes the summary wholesale.
func ProcessFormattedCases(text string) any {
	var detail CaseDetail

	if _, after, ok := strings.Cut(text, "제목:"); ok {
		detail.Title = strings.TrimSpace(segmentBefore(after, "\n"))
	}
	if _, after, ok := strings.Cut(text, "요약:"); ok {
		detail.Summary = strings.TrimSpace(segmentBefore(after, "\n\n"))
	}
	if _, after, ok := strings.Cut(text, "주요 쟁점:"); ok {
		detail.KeyPoints = strings.TrimSpace(segmentBefore(after, "\n\n"))
	}
	if _, after, ok := strings.Cut(text, "판결:"); ok {
		detail.JudgeResult = strings.TrimSpace(after)
	}

	if detail == (CaseDetail{}) {
		detail.Summary = text
	}
	return casesEnvelope(detail)
}

// processFindCaseResult accepts the several shapes the case tool (or a
// model echo of it) may produce and normalizes them to a cases envelope.
func processFindCaseResult(payload any, raw string) any {
	switch content := payload.(type) {
	case []any:
		if len(content) > 0 {
			return processFormattedItem(content[0])
		}
	case map[string]any:
		if cases, ok := content["cases"]; ok {
			if list, ok := cases.([]any); ok && len(list) > 0 {
				switch first := list[0].(type) {
				case string:
					return ProcessFormattedCases(first)
				case map[string]any:
					if fc, ok := first["formatted_case"].(string); ok {
						return ProcessFormattedCases(fc)
					}
					return casesEnvelope(detailFromMap(first, "case_name", "title"))
				}
			}
		} else if fcs, ok := content["formatted_cases"]; ok {
			if list, ok := fcs.([]any); ok && len(list) > 0 {
				return processFormattedItem(list[0])
			}
		} else {
			return casesEnvelope(detailFromMap(content, "case_name", "title"))
		}
	}
	return ProcessFormattedCases(raw)
}

// processFormattedItem feeds one case item, string or object, through the
// formatted-case parser.
func processFormattedItem(item any) any {
	switch v := item.(type) {
	case string:
		return ProcessFormattedCases(v)
	case map[string]any:
		return casesEnvelope(detailFromMap(v, "title"))
	default:
		return SimpleDialogue{
			Type:     "simple_dialogue",
			Response: fmt.Sprintf("%v", v),
			Status:   "success",
			Message:  "Showing raw case data",
		}
	}
}

// processSimulationResult parses each simulation string into its dialogue
// parts. IDs are 1-based.
func processSimulationResult(payload any) any {
	content, _ := payload.(map[string]any)
	raw, _ := content["simulations"].([]any)
	if len(raw) == 0 {
		return ErrorDialogue("시뮬레이션 결과가 없습니다.", "No simulation results")
	}

	entries := make([]SimulationEntry, 0, len(raw))
	for i, item := range raw {
		text, _ := item.(string)
		situation, user, agentPart := ParseSimulation(text)
		entries = append(entries, SimulationEntry{
			ID:        i + 1,
			Situation: situation,
			User:      user,
			Agent:     agentPart,
		})
	}
	return simulationEnvelope(entries)
}

// processWebSearchResult joins results carrying both a title and content.
// With nothing joinable the raw payload JSON is returned instead.
func processWebSearchResult(payload any, raw string) any {
	content, _ := payload.(map[string]any)
	results, _ := content["results"].([]any)
	if len(results) == 0 {
		return ErrorDialogue("검색 결과가 없습니다.", "No search results")
	}

	var b strings.Builder
	for _, item := range results {
		r, _ := item.(map[string]any)
		title, _ := r["title"].(string)
		body, _ := r["content"].(string)
		if title != "" && body != "" {
			fmt.Fprintf(&b, "%s:\n%s\n\n", title, body)
		}
	}
	if b.Len() == 0 {
		return SuccessDialogue(raw)
	}
	return SuccessDialogue(b.String())
}

// ParseSimulation splits one role-played scenario into its situation, user
// and agent parts. Code fences are removed first; text that does not match
// the labelled layout yields three empty strings.
func ParseSimulation(text string) (situation, user, agent string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
	m := simulationPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", ""
	}
	return m[1], m[2], m[3]
}

func detailFromMap(m map[string]any, titleKeys ...string) CaseDetail {
	return CaseDetail{
		Title:       firstString(m, titleKeys...),
		Summary:     firstString(m, "summary"),
		KeyPoints:   firstString(m, "key_points"),
		JudgeResult: firstString(m, "judgment", "result"),
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// segmentBefore returns s up to the first sep, or all of s without one.
func segmentBefore(s, sep string) string {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i]
	}
	return s
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// firstRunes returns the first n runes of s.
func firstRunes(s string, n int) string {
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
