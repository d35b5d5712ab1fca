package parser

import "fmt"

// Registry maps file formats to parsers. The native PDF parser is always
// registered; SetUpstage swaps in the OCR service for the same formats.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	native := &PDFParser{}
	for _, f := range native.SupportedFormats() {
		r.parsers[f] = native
	}
	return r
}

// SetUpstage routes every format the OCR service supports through it.
func (r *Registry) SetUpstage(cfg UpstageConfig) {
	up := NewUpstageParser(cfg)
	for _, f := range up.SupportedFormats() {
		r.parsers[f] = up
	}
}

// Register installs a parser for a format, replacing any existing one.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Get returns the parser for a format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}
