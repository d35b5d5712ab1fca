package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jaekyeom/clauselens/caselaw"
	"github.com/jaekyeom/clauselens/llm"
)

type fakeMatcher struct {
	match caselaw.CaseMatch
	err   error
	calls []string
}

func (m *fakeMatcher) MostSimilar(_ context.Context, text string) (caselaw.CaseMatch, error) {
	m.calls = append(m.calls, text)
	if m.err != nil {
		return caselaw.CaseMatch{}, m.err
	}
	return m.match, nil
}

func testPrompts() *Prompts {
	return &Prompts{
		SummaryTemplate: "{content}",
		Highlight:       "계약서에서 독소조항을 JSON 배열로 추출하세요.",
		Simulate:        "분쟁 시뮬레이션을 생성하세요.",
		Format:          "판례를 제목/요약/주요 쟁점/판결로 정리하세요.",
	}
}

func TestRawClauseUnmarshal(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantClause string
		wantReason string
	}{
		{
			name:       "korean keys",
			data:       `{"독소조항":"자동 연장 조항","이유":"고객에게 불리"}`,
			wantClause: "자동 연장 조항",
			wantReason: "고객에게 불리",
		},
		{
			name:       "english keys",
			data:       `{"toxic_clause":"위약금 조항","reason":"과도한 배상"}`,
			wantClause: "위약금 조항",
			wantReason: "과도한 배상",
		},
		{
			name:       "korean keys win when both present",
			data:       `{"독소조항":"가","toxic_clause":"나","이유":"다","reason":"라"}`,
			wantClause: "가",
			wantReason: "다",
		},
		{
			name:       "missing reason",
			data:       `{"독소조항":"자동 연장 조항"}`,
			wantClause: "자동 연장 조항",
			wantReason: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c RawClause
			if err := json.Unmarshal([]byte(tt.data), &c); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if c.Clause != tt.wantClause || c.Reason != tt.wantReason {
				t.Errorf("got (%q, %q), want (%q, %q)", c.Clause, c.Reason, tt.wantClause, tt.wantReason)
			}
		})
	}
}

func TestRawClauseMarshalUsesEnglishKeys(t *testing.T) {
	data, err := json.Marshal(RawClause{Clause: "조항", Reason: "사유"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"toxic_clause"`) || !strings.Contains(s, `"reason"`) {
		t.Errorf("marshalled %s, want english keys", s)
	}
}

// TestToxicClauseFieldOrder pins the wire layout of a highlight entry.
// Clients index into these objects by position as well as by key.
func TestToxicClauseFieldOrder(t *testing.T) {
	data, err := json.Marshal(ToxicClause{
		Clause:           "자동 연장 조항",
		Reason:           "고객에게 불리",
		RelatedFormatted: "제목: 위약금 판례",
		RelatedRaw:       "대법원 2020다1234 판결",
		Similarity:       0.87,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"toxic_clause":"자동 연장 조항","reason":"고객에게 불리",` +
		`"related_case_formatted":"제목: 위약금 판례","related_case_raw":"대법원 2020다1234 판결","similarity":0.87}`
	if string(data) != want {
		t.Errorf("marshalled\n%s\nwant\n%s", data, want)
	}
}

func TestDecodeClauseArray(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "plain array",
			text: `[{"독소조항":"가","이유":"나"},{"독소조항":"다","이유":"라"}]`,
			want: 2,
		},
		{
			name: "fenced array",
			text: "```json\n[{\"독소조항\":\"가\",\"이유\":\"나\"}]\n```",
			want: 1,
		},
		{
			name: "prose around the array",
			text: `분석 결과입니다: [{"toxic_clause":"가","reason":"나"}] 이상입니다.`,
			want: 1,
		},
		{
			name: "entries without clause text dropped",
			text: `[{"이유":"나"},{"독소조항":"다"}]`,
			want: 1,
		},
		{
			name: "empty array",
			text: `[]`,
			want: 0,
		},
		{
			name: "no array at all",
			text: "독소조항이 없습니다.",
			want: 0,
		},
		{
			name: "malformed json",
			text: `[{"독소조항": 버그}]`,
			want: 0,
		},
		{
			name: "object instead of array",
			text: `{"독소조항":"가"}`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeClauseArray(tt.text)
			if len(got) != tt.want {
				t.Errorf("decoded %d clauses %v, want %d", len(got), got, tt.want)
			}
			for _, c := range got {
				if c.Clause == "" {
					t.Errorf("decoded clause with empty text: %+v", c)
				}
			}
		})
	}
}

func TestFormatCaseGuardrails(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		replies []string
		errs    []error
		want    string
		calls   int
	}{
		{
			name:  "too short",
			input: "판례",
			want:  "유효한 판례 정보가 필요합니다.",
		},
		{
			name:  "short and off-topic",
			input: "가나다라마바사아자차",
			want:  "계약서 분석과 관련된 내용만 처리할 수 있습니다.",
		},
		{
			name:    "short but carries a legal term",
			input:   "판례 요지 손해배상 인정됨",
			replies: []string{"제목: 손해배상 판례"},
			want:    "제목: 손해배상 판례",
			calls:   1,
		},
		{
			name:    "model failure",
			input:   "대법원 2020다1234 판결은 위약금 약정의 감액을 인정한 사례이다.",
			errs:    []error{errors.New("upstream down")},
			want:    "판례 분석 중 오류가 발생했습니다: upstream down",
			calls:   1,
		},
		{
			name:    "empty completion",
			input:   "대법원 2020다1234 판결은 위약금 약정의 감액을 인정한 사례이다.",
			replies: []string{"   "},
			want:    "판례 분석 결과가 없습니다.",
			calls:   1,
		},
		{
			name:    "formatted reply passes through",
			input:   "대법원 2020다1234 판결은 위약금 약정의 감액을 인정한 사례이다.",
			replies: []string{"제목: 위약금 감액\n요약: 법원이 감액을 인정함"},
			want:    "제목: 위약금 감액\n요약: 법원이 감액을 인정함",
			calls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{replies: tt.replies, errs: tt.errs}
			e := NewExtractor(llm.NewGateway(p, "test-model", 0), &fakeMatcher{}, testPrompts(), 1.0)

			got := e.FormatCase(context.Background(), tt.input)
			if got != tt.want {
				t.Errorf("FormatCase = %q, want %q", got, tt.want)
			}
			if len(p.reqs) != tt.calls {
				t.Errorf("made %d model calls, want %d", len(p.reqs), tt.calls)
			}
		})
	}
}

func TestFormatCaseRequestShape(t *testing.T) {
	p := &fakeProvider{replies: []string{"제목: 결과"}}
	prompts := testPrompts()
	e := NewExtractor(llm.NewGateway(p, "test-model", 0), &fakeMatcher{}, prompts, 1.0)

	e.FormatCase(context.Background(), "  대법원 2020다1234 판결은 위약금 약정의 감액을 인정한 사례이다.  ")

	req := p.reqs[0]
	if len(req.Messages) != 2 {
		t.Fatalf("got %d messages, want system+user", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != prompts.Format {
		t.Errorf("system message = %+v, want format prompt", req.Messages[0])
	}
	if strings.HasPrefix(req.Messages[1].Content, " ") {
		t.Error("user message not trimmed")
	}
	if req.Temperature != 1.0 {
		t.Errorf("temperature = %v, want 1.0", req.Temperature)
	}
}

func TestExtractAttachesPrecedents(t *testing.T) {
	caseValue := "대법원 2020다1234 판결: 위약금 약정이 부당하게 과다한 경우 법원은 이를 감액할 수 있다."
	p := &fakeProvider{replies: []string{
		`[{"독소조항":"자동 연장 조항","이유":"고객에게 불리"},{"독소조항":"위약금 3배 조항","이유":"과도한 배상"}]`,
		"제목: 판례 하나",
		"제목: 판례 둘",
	}}
	m := &fakeMatcher{match: caselaw.CaseMatch{
		Case:  caselaw.Case{Key: "위약금", Value: caseValue},
		Score: 0.87,
		Index: 3,
	}}
	e := NewExtractor(llm.NewGateway(p, "test-model", 0), m, testPrompts(), 1.0)

	got, err := e.Extract(context.Background(), "계약서 전문")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d clauses, want 2", len(got))
	}

	if got[0].Clause != "자동 연장 조항" || got[0].Reason != "고객에게 불리" {
		t.Errorf("clause 0 = %+v", got[0])
	}
	wantFormatted := []string{"제목: 판례 하나", "제목: 판례 둘"}
	for i, tc := range got {
		if tc.RelatedRaw != caseValue {
			t.Errorf("clause %d RelatedRaw = %q, want corpus value", i, tc.RelatedRaw)
		}
		if tc.RelatedFormatted != wantFormatted[i] {
			t.Errorf("clause %d RelatedFormatted = %q, want %q", i, tc.RelatedFormatted, wantFormatted[i])
		}
		if tc.Similarity != 0.87 {
			t.Errorf("clause %d Similarity = %v, want 0.87", i, tc.Similarity)
		}
	}

	if len(m.calls) != 2 || m.calls[0] != "자동 연장 조항" || m.calls[1] != "위약금 3배 조항" {
		t.Errorf("matcher queried with %v, want the clause texts", m.calls)
	}

	// One extraction call plus one formatting call per clause.
	if len(p.reqs) != 3 {
		t.Errorf("made %d model calls, want 3", len(p.reqs))
	}
	if p.reqs[0].Messages[0].Content != testPrompts().Highlight {
		t.Errorf("extraction system prompt = %q", p.reqs[0].Messages[0].Content)
	}
}

func TestExtractDegradesOnMatcherError(t *testing.T) {
	p := &fakeProvider{replies: []string{`[{"독소조항":"자동 연장 조항","이유":"고객에게 불리"}]`}}
	m := &fakeMatcher{err: errors.New("index empty")}
	e := NewExtractor(llm.NewGateway(p, "test-model", 0), m, testPrompts(), 1.0)

	got, err := e.Extract(context.Background(), "계약서 전문")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d clauses, want 1", len(got))
	}
	tc := got[0]
	if tc.Clause != "자동 연장 조항" {
		t.Errorf("Clause = %q", tc.Clause)
	}
	if tc.RelatedRaw != "" || tc.RelatedFormatted != "" || tc.Similarity != 0 {
		t.Errorf("degraded entry carries precedent data: %+v", tc)
	}
	if len(p.reqs) != 1 {
		t.Errorf("made %d model calls, want 1 (no formatting for degraded entry)", len(p.reqs))
	}
}

func TestExtractPropagatesModelError(t *testing.T) {
	boom := errors.New("upstream down")
	p := &fakeProvider{errs: []error{boom}}
	e := NewExtractor(llm.NewGateway(p, "test-model", 0), &fakeMatcher{}, testPrompts(), 1.0)

	if _, err := e.Extract(context.Background(), "계약서 전문"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want provider error", err)
	}
}

func TestExtractEmptyCompletion(t *testing.T) {
	p := &fakeProvider{replies: []string{"독소조항이 없습니다."}}
	e := NewExtractor(llm.NewGateway(p, "test-model", 0), &fakeMatcher{}, testPrompts(), 1.0)

	got, err := e.Extract(context.Background(), "계약서 전문")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d clauses, want 0", len(got))
	}
}
