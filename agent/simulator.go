package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jaekyeom/clauselens/analysis"
	"github.com/jaekyeom/clauselens/caselaw"
	"github.com/jaekyeom/clauselens/llm"
	"github.com/jaekyeom/clauselens/parser"
)

// fallbackSimulation stands in when the final synthesis call fails after
// the earlier stages already produced clauses and precedents.
const fallbackSimulation = "시뮬레이션을 실행하지 못했습니다."

// selectCaseRunes caps how much of a candidate precedent is re-embedded
// during the final selection, counted in runes.
const selectCaseRunes = 1024

// SimulatorConfig tunes the simulation pipeline.
type SimulatorConfig struct {
	// SelectClauses is how many query-relevant clauses survive stage three.
	SelectClauses int

	// RetrieveCases is the candidate precedent pool size per clause.
	RetrieveCases int

	// Temperature applies to the scenario synthesis completions.
	Temperature float64
}

// Simulator runs the dispute simulation: parse the contract, extract toxic
// clauses, keep the ones relevant to the query, retrieve and select a
// precedent per clause, then synthesize one role-played scenario per pair.
type Simulator struct {
	parsers   *parser.Registry
	extractor *analysis.Extractor
	retriever *caselaw.Retriever
	gw        *llm.Gateway
	prompts   *analysis.Prompts
	cfg       SimulatorConfig
}

func NewSimulator(parsers *parser.Registry, extractor *analysis.Extractor, retriever *caselaw.Retriever, gw *llm.Gateway, prompts *analysis.Prompts, cfg SimulatorConfig) *Simulator {
	if cfg.SelectClauses < 1 {
		cfg.SelectClauses = 2
	}
	if cfg.RetrieveCases < 1 {
		cfg.RetrieveCases = 10
	}
	return &Simulator{
		parsers:   parsers,
		extractor: extractor,
		retriever: retriever,
		gw:        gw,
		prompts:   prompts,
		cfg:       cfg,
	}
}

// Run drives the stages in order and returns the final state. documentText
// skips the parse stage when the caller already extracted the contract.
func (s *Simulator) Run(ctx context.Context, query, filePath, documentText string) State {
	state := State{Query: query, FilePath: filePath, DocumentText: documentText}

	if err := s.retriever.Load(ctx); err != nil {
		state.Err = "실행 오류: " + err.Error()
		return state
	}

	state = s.parse(ctx, state)
	state = s.extract(ctx, state)
	state = s.selectClauses(ctx, state)
	state = s.retrieveCases(ctx, state)
	state = s.selectCases(ctx, state)
	state = s.simulate(ctx, state)

	if state.Err != "" {
		slog.Warn("agent: simulation ended with error", "error", state.Err)
	}
	return state
}

// parse loads the document text unless the caller already supplied it.
func (s *Simulator) parse(ctx context.Context, state State) State {
	if state.Err != "" || state.DocumentText != "" {
		return state
	}
	if state.FilePath == "" {
		state.Err = "No document file provided"
		return state
	}

	text, err := parseDocument(ctx, s.parsers, state.FilePath)
	if err != nil {
		state.Err = "Document parsing error: " + err.Error()
		return state
	}
	if text == "" {
		state.Err = "Failed to extract text from document"
		return state
	}
	state.DocumentText = text
	return state
}

// extract pulls the toxic-clause candidates out of the document.
func (s *Simulator) extract(ctx context.Context, state State) State {
	if state.Err != "" || state.DocumentText == "" {
		return state
	}

	clauses, err := s.extractor.ExtractRaw(ctx, state.DocumentText)
	if err != nil {
		state.Err = "Clause extraction error: " + err.Error()
		return state
	}
	if len(clauses) == 0 {
		state.Err = "No toxic clauses found"
		return state
	}
	state.ToxicClauses = clauses
	return state
}

// selectClauses keeps the clauses most similar to the user query.
func (s *Simulator) selectClauses(ctx context.Context, state State) State {
	if state.Err != "" || len(state.ToxicClauses) == 0 {
		return state
	}

	queryVec, err := s.retriever.EmbedQuery(ctx, state.Query)
	if err != nil {
		state.Err = "Clause selection error: " + err.Error()
		return state
	}

	type scored struct {
		clause analysis.RawClause
		score  float64
	}
	ranked := make([]scored, 0, len(state.ToxicClauses))
	for _, clause := range state.ToxicClauses {
		if clause.Clause == "" {
			continue
		}
		vec, err := s.retriever.EmbedQuery(ctx, clause.Clause)
		if err != nil {
			state.Err = "Clause selection error: " + err.Error()
			return state
		}
		ranked = append(ranked, scored{clause, caselaw.Cosine(queryVec, vec)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	keep := s.cfg.SelectClauses
	if keep > len(ranked) {
		keep = len(ranked)
	}
	for _, r := range ranked[:keep] {
		state.RelevantToxicClauses = append(state.RelevantToxicClauses, r.clause)
	}
	if len(state.RelevantToxicClauses) == 0 {
		state.Err = "Failed to find relevant toxic clauses"
	}
	return state
}

// retrieveCases pulls a candidate precedent pool for each relevant clause.
func (s *Simulator) retrieveCases(ctx context.Context, state State) State {
	if state.Err != "" || len(state.RelevantToxicClauses) == 0 {
		return state
	}

	for _, clause := range state.RelevantToxicClauses {
		vec, err := s.retriever.EmbedQuery(ctx, state.Query+" "+clause.Clause)
		if err != nil {
			state.Err = "Case retrieval error: " + err.Error()
			state.SimilarCases = [][]Candidate{}
			return state
		}
		matches, err := s.retriever.TopKVector(vec, s.cfg.RetrieveCases)
		if err != nil {
			state.Err = "Case retrieval error: " + err.Error()
			state.SimilarCases = [][]Candidate{}
			return state
		}

		candidates := make([]Candidate, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, Candidate{
				CaseText:        m.Case.Value,
				SimilarityScore: m.Score,
				Index:           m.Index,
			})
		}
		state.SimilarCases = append(state.SimilarCases, candidates)
	}
	return state
}

// selectCases re-scores each candidate pool against the query alone and
// formats the winner. Only a strictly better score displaces the current
// winner, so ties keep the earliest candidate.
func (s *Simulator) selectCases(ctx context.Context, state State) State {
	if state.Err != "" || len(state.SimilarCases) == 0 {
		return state
	}

	queryVec, err := s.retriever.EmbedQuery(ctx, state.Query)
	if err != nil {
		state.Err = "Case selection error: " + err.Error()
		return state
	}

	for _, candidates := range state.SimilarCases {
		best, bestScore := -1, -1.0
		for i, cand := range candidates {
			vec, err := s.retriever.EmbedQuery(ctx, firstRunes(cand.CaseText, selectCaseRunes))
			if err != nil {
				state.Err = "Case selection error: " + err.Error()
				return state
			}
			if score := caselaw.Cosine(queryVec, vec); score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			continue
		}
		winner := candidates[best]
		winner.FormattedCase = s.extractor.FormatCase(ctx, winner.CaseText)
		if winner.FormattedCase == "" {
			winner.FormattedCase = "판례 분석 실패"
		}
		state.SelectedCases = append(state.SelectedCases, winner)
	}

	if len(state.SelectedCases) == 0 {
		state.Err = "Failed to select relevant cases"
	}
	return state
}

// simulate synthesizes one role-played scenario per clause/precedent pair.
// A synthesis failure downgrades every scenario to the fallback message so
// the clauses and precedents already selected still reach the caller.
func (s *Simulator) simulate(ctx context.Context, state State) State {
	if state.Err != "" || len(state.SelectedCases) == 0 {
		return state
	}

	n := len(state.SelectedCases)
	if n > len(state.RelevantToxicClauses) {
		n = len(state.RelevantToxicClauses)
	}

	for i := 0; i < n; i++ {
		clause := state.RelevantToxicClauses[i]
		summary := state.SelectedCases[i].FormattedCase
		if summary == "" {
			summary = "판례 분석 실패"
		}
		content := fmt.Sprintf(
			"1. 독소조항:\n독소조항:\n- 조항: %s\n- 이유: %s\n\n2. 관련 판례:\n%s",
			clause.Clause, clause.Reason, summary,
		)

		out, err := s.gw.Complete(ctx, s.prompts.Simulate, content, s.cfg.Temperature)
		if err != nil {
			state.Err = "Simulation error: " + err.Error()
			state.Simulations = make([]string, len(state.SelectedCases))
			for j := range state.Simulations {
				state.Simulations[j] = fallbackSimulation
			}
			return state
		}
		state.Simulations = append(state.Simulations, out)
	}
	return state
}

// parseDocument extracts text from the document at path via the registry.
func parseDocument(ctx context.Context, parsers *parser.Registry, path string) (string, error) {
	p, err := parsers.Get(parser.FormatOf(path))
	if err != nil {
		return "", err
	}
	res, err := p.Parse(ctx, path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
