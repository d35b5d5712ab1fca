package analysis

import "encoding/json"

// DegradedSummary replaces the summary when the model never produces all
// required sections. Callers serve it as a plain string instead of a map.
const DegradedSummary = "요약에 문제가 있습니다."

// requiredSummaryKeys are the section labels every contract summary must
// carry, in report order.
var requiredSummaryKeys = []string{
	"Overall Summary",
	"Purpose",
	"Cost",
	"Revenue",
	"Contract Duration",
	"Contractor's Responsibilities",
	"Key Findings",
}

// Summary maps section labels to section text, as parsed from the
// summarizer's labelled completion.
type Summary map[string]string

// Missing returns the required section labels absent from s, in report
// order.
func (s Summary) Missing() []string {
	var missing []string
	for _, key := range requiredSummaryKeys {
		if _, ok := s[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// Complete reports whether every required section is present.
func (s Summary) Complete() bool { return len(s.Missing()) == 0 }

// RawClause is one entry of the extraction model's JSON array. Completions
// label the fields in Korean or English depending on the model's mood, so
// decoding accepts both spellings; encoding always emits the English ones.
type RawClause struct {
	Clause string `json:"toxic_clause"`
	Reason string `json:"reason"`
}

func (c *RawClause) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClauseKo string `json:"독소조항"`
		ReasonKo string `json:"이유"`
		Clause   string `json:"toxic_clause"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Clause = raw.ClauseKo
	if c.Clause == "" {
		c.Clause = raw.Clause
	}
	c.Reason = raw.ReasonKo
	if c.Reason == "" {
		c.Reason = raw.Reason
	}
	return nil
}

// ToxicClause is one highlighted clause with its attached precedent. Field
// order is part of the upload response contract.
type ToxicClause struct {
	Clause           string  `json:"toxic_clause"`
	Reason           string  `json:"reason"`
	RelatedFormatted string  `json:"related_case_formatted"`
	RelatedRaw       string  `json:"related_case_raw"`
	Similarity       float64 `json:"similarity"`
}
