package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaekyeom/clauselens/llm"
)

// ErrSummaryDegraded is returned when the summarizer exhausts its retry
// budget without producing all required summary sections.
var ErrSummaryDegraded = errors.New("analysis: summary missing required sections")

// Summarizer produces the seven-section contract summary. The gateway it
// wraps carries the completion token cap, so summaries cannot run away on
// long contracts.
type Summarizer struct {
	gw          *llm.Gateway
	template    string
	maxAttempts int
}

// NewSummarizer builds a summarizer over gw. template must carry a
// {content} slot; maxAttempts below 1 is clamped to 1.
func NewSummarizer(gw *llm.Gateway, template string, maxAttempts int) *Summarizer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Summarizer{gw: gw, template: template, maxAttempts: maxAttempts}
}

// Summarize fills the template with the document text and asks the model
// for a labelled summary at temperature zero. Completions missing required
// sections are retried up to the attempt budget; exhaustion returns
// ErrSummaryDegraded wrapped with the missing labels.
func (s *Summarizer) Summarize(ctx context.Context, content string) (Summary, error) {
	prompt := strings.ReplaceAll(s.template, "{content}", content)
	msgs := []llm.Message{{Role: "user", Content: prompt}}

	var missing []string
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		text, err := s.gw.Messages(ctx, msgs, 0)
		if err != nil {
			return nil, fmt.Errorf("summary completion: %w", err)
		}
		summary := ParseSummary(text)
		if missing = summary.Missing(); len(missing) == 0 {
			return summary, nil
		}
		slog.Warn("analysis: summary incomplete, retrying",
			"attempt", attempt, "missing", missing)
	}
	return nil, fmt.Errorf("%w: %v", ErrSummaryDegraded, missing)
}

// ParseSummary splits a labelled completion into sections. A line containing
// a colon starts a new section: the text before the first colon is the
// label, the remainder begins its value. Lines without a colon continue the
// current section. Text before the first label is dropped.
func ParseSummary(text string) Summary {
	summary := Summary{}
	var key string
	var parts []string

	flush := func() {
		if key != "" {
			summary[key] = strings.TrimSpace(strings.Join(parts, "\n"))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if before, after, ok := strings.Cut(line, ":"); ok {
			flush()
			key = strings.TrimSpace(before)
			parts = []string{strings.TrimSpace(after)}
			continue
		}
		if key != "" {
			parts = append(parts, strings.TrimSpace(line))
		}
	}
	flush()
	return summary
}
