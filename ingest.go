package clauselens

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaekyeom/clauselens/analysis"
	"github.com/jaekyeom/clauselens/parser"
)

// emptyTextPlaceholder stands in for the document text when the parser
// extracts nothing, so the summarizer never receives an empty prompt.
const emptyTextPlaceholder = "파싱된 텍스트가 없습니다."

// Report is the analysis of one uploaded contract.
type Report struct {
	// Summary holds the seven labelled sections. Nil when Degraded.
	Summary analysis.Summary `json:"summary"`

	// Degraded marks a summarizer that never produced all sections.
	Degraded bool `json:"degraded"`

	// Highlights are the toxic clauses with attached precedents. Never nil.
	Highlights []analysis.ToxicClause `json:"highlight"`
}

// SummaryValue returns the section map, or the sentinel string when the
// summary degraded. Upload responses serve this value directly.
func (r *Report) SummaryValue() any {
	if r.Degraded {
		return analysis.DegradedSummary
	}
	return r.Summary
}

// Analyze parses the contract at path and produces its summary and
// toxic-clause highlights. Parsing failures are fatal; everything after
// degrades per stage so a flaky model never loses the whole report.
func (e *engine) Analyze(ctx context.Context, path string) (*Report, error) {
	if path == "" {
		return nil, ErrNoDocument
	}
	filename := filepath.Base(path)
	format := parser.FormatOf(path)

	slog.Info("analyze: parsing contract", "file", filename, "format", format)
	parseStart := time.Now()

	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	parsed, err := p.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	text := parsed.Text
	if strings.TrimSpace(text) == "" {
		slog.Warn("analyze: no text extracted, substituting placeholder", "file", filename)
		text = emptyTextPlaceholder
	}
	slog.Info("analyze: parsing complete",
		"file", filename, "method", parsed.Method, "chars", len(text),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	report := &Report{Highlights: []analysis.ToxicClause{}}

	summaryStart := time.Now()
	summary, err := e.summarizer.Summarize(ctx, text)
	if err != nil {
		slog.Warn("analyze: summary degraded", "file", filename, "error", err)
		report.Degraded = true
	} else {
		report.Summary = summary
	}
	slog.Info("analyze: summary complete",
		"file", filename, "degraded", report.Degraded,
		"elapsed", time.Since(summaryStart).Round(time.Millisecond))

	// Highlights want the precedent index; a load failure only costs the
	// per-clause related fields, so extraction proceeds regardless.
	if err := e.retriever.Load(ctx); err != nil {
		slog.Warn("analyze: case index unavailable", "error", err)
	}

	highlightStart := time.Now()
	highlights, err := e.extractor.Extract(ctx, text)
	if err != nil {
		slog.Warn("analyze: highlight extraction failed", "file", filename, "error", err)
		highlights = nil
	}
	if highlights != nil {
		report.Highlights = highlights
	}
	slog.Info("analyze: highlights complete",
		"file", filename, "count", len(report.Highlights),
		"elapsed", time.Since(highlightStart).Round(time.Millisecond))

	return report, nil
}
