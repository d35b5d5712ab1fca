package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jaekyeom/clauselens/caselaw"
	"github.com/jaekyeom/clauselens/llm"
)

// Matcher finds the most similar precedent for a clause.
type Matcher interface {
	MostSimilar(ctx context.Context, text string) (caselaw.CaseMatch, error)
}

// Canned FormatCase replies. Guardrail rejections and formatting failures
// come back as these strings rather than errors, so one bad precedent never
// sinks a whole highlight list.
const (
	msgCaseTooShort   = "유효한 판례 정보가 필요합니다."
	msgCaseOffTopic   = "계약서 분석과 관련된 내용만 처리할 수 있습니다."
	msgCaseEmptyReply = "판례 분석 결과가 없습니다."
	msgCaseFormatErr  = "판례 분석 중 오류가 발생했습니다: "
)

// legalTerms whitelist very short inputs: a handful of words mentioning one
// of these still counts as case material.
var legalTerms = []string{"판례", "법원", "계약", "조항"}

// Extractor pulls toxic clauses out of contract text and attaches the
// closest precedent to each.
type Extractor struct {
	gw      *llm.Gateway
	matcher Matcher
	prompts *Prompts
	temp    float64
}

// NewExtractor builds an extractor. temperature applies to both the clause
// extraction and the precedent formatting completions.
func NewExtractor(gw *llm.Gateway, matcher Matcher, prompts *Prompts, temperature float64) *Extractor {
	return &Extractor{gw: gw, matcher: matcher, prompts: prompts, temp: temperature}
}

// ExtractRaw asks the model for the toxic-clause array of documentText and
// decodes it. A completion with no parsable array yields an empty list, not
// an error; only transport failures are returned.
func (e *Extractor) ExtractRaw(ctx context.Context, documentText string) ([]RawClause, error) {
	text, err := e.gw.Complete(ctx, e.prompts.Highlight, documentText, e.temp)
	if err != nil {
		return nil, err
	}
	clauses := DecodeClauseArray(text)
	if len(clauses) == 0 {
		slog.Debug("analysis: no toxic clauses decoded", "completion_len", len(text))
	}
	return clauses, nil
}

// Extract runs ExtractRaw and attaches the most similar precedent to each
// clause. Precedent lookup failures degrade that one entry to empty related
// fields instead of failing the list.
func (e *Extractor) Extract(ctx context.Context, documentText string) ([]ToxicClause, error) {
	raw, err := e.ExtractRaw(ctx, documentText)
	if err != nil {
		return nil, err
	}

	clauses := make([]ToxicClause, 0, len(raw))
	for _, rc := range raw {
		tc := ToxicClause{Clause: rc.Clause, Reason: rc.Reason}
		match, err := e.matcher.MostSimilar(ctx, rc.Clause)
		if err != nil {
			slog.Warn("analysis: precedent lookup failed", "error", err)
			clauses = append(clauses, tc)
			continue
		}
		tc.RelatedRaw = match.Case.Value
		tc.RelatedFormatted = e.FormatCase(ctx, match.Case.Value)
		tc.Similarity = match.Score
		clauses = append(clauses, tc)
	}
	return clauses, nil
}

// FormatCase renders a precedent into the human-facing 제목/요약/주요 쟁점/판결
// layout. Inputs too short or off-topic are rejected before the model is
// called, and failures come back as canned Korean strings.
func (e *Extractor) FormatCase(ctx context.Context, caseText string) string {
	trimmed := strings.TrimSpace(caseText)
	if utf8.RuneCountInString(trimmed) < 10 {
		return msgCaseTooShort
	}
	if len(strings.Fields(trimmed)) < 5 && !containsAnyTerm(trimmed, legalTerms) {
		return msgCaseOffTopic
	}

	out, err := e.gw.Complete(ctx, e.prompts.Format, trimmed, e.temp)
	if err != nil {
		slog.Warn("analysis: precedent formatting failed", "error", err)
		return msgCaseFormatErr + err.Error()
	}
	if out == "" {
		return msgCaseEmptyReply
	}
	return out
}

// DecodeClauseArray pulls the first JSON array out of a completion and
// decodes it. Fences are stripped, text around the array is ignored, and
// anything unparsable yields an empty list. Entries without clause text are
// dropped.
func DecodeClauseArray(text string) []RawClause {
	text = llm.StripFences(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil
	}

	var raw []RawClause
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil
	}

	clauses := make([]RawClause, 0, len(raw))
	for _, c := range raw {
		if c.Clause == "" {
			continue
		}
		clauses = append(clauses, c)
	}
	return clauses
}

func containsAnyTerm(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
