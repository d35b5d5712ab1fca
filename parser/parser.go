// Package parser extracts plain text from uploaded contract documents.
// The default path is native PDF extraction; when the Upstage OCR service
// is configured it takes over, which also covers scanned contracts.
package parser

import (
	"context"
	"path/filepath"
	"strings"
)

// FormatOf derives the registry format key for a path: the lowercase file
// extension without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Result is extracted document text plus how it was produced.
type Result struct {
	// Text is the full extracted text. It may be empty for image-only
	// documents parsed natively; callers own the empty-text policy.
	Text string

	// Method identifies the extractor: "native" or "upstage".
	Method string

	// Metadata carries extractor-specific details (page counts, model).
	Metadata map[string]string
}

// Parser extracts text from a document on disk.
type Parser interface {
	// Parse reads and extracts the document at path.
	Parse(ctx context.Context, path string) (*Result, error)

	// SupportedFormats lists the file extensions this parser handles.
	SupportedFormats() []string
}
