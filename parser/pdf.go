package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts text natively, without any external service. Scanned
// PDFs without a text layer come back empty here; the Upstage parser is the
// answer for those.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var sb strings.Builder
	extracted := 0

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
		extracted++
	}

	return &Result{
		Text:   sb.String(),
		Method: "native",
		Metadata: map[string]string{
			"pages":           strconv.Itoa(totalPages),
			"pages_with_text": strconv.Itoa(extracted),
		},
	}, nil
}
