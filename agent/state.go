package agent

import "github.com/jaekyeom/clauselens/analysis"

// Candidate is one precedent pulled for a clause during simulation, before
// the per-clause winner is picked.
type Candidate struct {
	CaseText        string  `json:"case"`
	SimilarityScore float64 `json:"similarity_score"`
	Index           int     `json:"index"`
	FormattedCase   string  `json:"formatted_case"`
}

// State carries a dispute simulation through its stages. Every stage checks
// Err first and passes the state through untouched once it is set, so
// fields filled by earlier stages survive a late failure.
type State struct {
	Query        string
	FilePath     string
	DocumentText string

	// ToxicClauses are all clauses extracted from the document;
	// RelevantToxicClauses the ones closest to the query.
	ToxicClauses         []analysis.RawClause
	RelevantToxicClauses []analysis.RawClause

	// SimilarCases holds one candidate pool per relevant clause;
	// SelectedCases the winner of each pool with FormattedCase filled.
	SimilarCases  [][]Candidate
	SelectedCases []Candidate

	// Simulations are the synthesized role-played scenarios, one per
	// clause/precedent pair.
	Simulations []string

	Err string
}
