// Package caselaw loads the precedent corpus and serves cosine-similarity
// lookups over a persisted embedding index.
package caselaw

import (
	"encoding/json"
	"fmt"
	"os"
)

// Case is one precedent of the corpus: Key is the clause pattern the corpus
// is searched by, Value the full case text shown to the analysis prompts.
type Case struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LoadCases reads the corpus file, a JSON array of cases.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case db: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("decoding case db %s: %w", path, err)
	}
	return cases, nil
}
