// Package clauselens analyzes Korean contract PDFs: it produces a labelled
// summary plus toxic-clause highlights annotated with the most similar
// precedents, and answers follow-up questions through an LLM tool-calling
// agent that returns one of three response envelopes.
package clauselens

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaekyeom/clauselens/agent"
	"github.com/jaekyeom/clauselens/analysis"
	"github.com/jaekyeom/clauselens/caselaw"
	"github.com/jaekyeom/clauselens/llm"
	"github.com/jaekyeom/clauselens/parser"
	"github.com/jaekyeom/clauselens/storage"
	"github.com/jaekyeom/clauselens/websearch"
)

// Engine is the main entry point for the contract analysis service.
type Engine interface {
	// Analyze parses an uploaded contract and produces its summary and
	// toxic-clause highlights.
	Analyze(ctx context.Context, path string) (*Report, error)

	// Answer routes a user query through the tool-calling agent and returns
	// one of the three response envelopes. filePath is the session's
	// uploaded contract, empty when none.
	Answer(ctx context.Context, query, filePath string) any

	// Storage returns the upload registry and query log.
	Storage() *storage.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg        Config
	storage    *storage.Store
	chatLLM    llm.Provider
	embedLLM   llm.Provider
	parsers    *parser.Registry
	prompts    *analysis.Prompts
	retriever  *caselaw.Retriever
	summarizer *analysis.Summarizer
	extractor  *analysis.Extractor
	simulator  *agent.Simulator
	registry   *agent.Registry
	orch       *agent.Orchestrator
}

// New creates a ClauseLens engine with the given configuration. The case
// corpus and prompt files must exist; everything network-backed is touched
// lazily on first use.
func New(cfg Config) (Engine, error) {
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	embedLLM, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	// The summarizer runs behind its own gateway so its completion cap never
	// truncates extraction or simulation output.
	chatGW := llm.NewGateway(chatLLM, cfg.Chat.Model, 0)
	summaryGW := llm.NewGateway(chatLLM, cfg.Chat.Model, cfg.SummaryMaxTokens)

	if _, err := os.Stat(cfg.CaseDBPath); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %s", ErrCaseDBNotFound, cfg.CaseDBPath)
	}

	parsers := parser.NewRegistry()
	if cfg.Upstage != nil {
		parsers.SetUpstage(parser.UpstageConfig{
			APIKey:  cfg.Upstage.APIKey,
			BaseURL: cfg.Upstage.BaseURL,
		})
	}

	prompts, err := analysis.LoadPrompts(cfg.PromptsDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", ErrPromptNotFound, err)
	}

	retriever := caselaw.NewRetriever(cfg.CaseDBPath, cfg.archivePath(), embedLLM)
	summarizer := analysis.NewSummarizer(summaryGW, prompts.SummaryTemplate, cfg.SummaryMaxAttempts)
	extractor := analysis.NewExtractor(chatGW, retriever, prompts, cfg.AnalysisTemp)

	simulator := agent.NewSimulator(parsers, extractor, retriever, chatGW, prompts, agent.SimulatorConfig{
		SelectClauses: cfg.SelectClauses,
		RetrieveCases: cfg.RetrieveCases,
		Temperature:   cfg.AnalysisTemp,
	})

	registry := agent.NewRegistry()
	registry.Register(agent.NewFindCaseTool(retriever, extractor))
	registry.Register(agent.NewSimulateDisputeTool(simulator, cfg.CaseDBPath))
	registry.Register(agent.NewFindToxicClausesTool(parsers, extractor, retriever))
	if cfg.Search.APIKey != "" {
		searcher := websearch.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.MaxResults)
		registry.Register(agent.NewWebSearchTool(searcher))
	} else {
		slog.Info("clauselens: web search disabled, no api key")
	}

	orch := agent.NewOrchestrator(chatGW, registry, prompts.Format, cfg.RouterTemp, cfg.FormatterTemp)

	return &engine{
		cfg:        cfg,
		storage:    store,
		chatLLM:    chatLLM,
		embedLLM:   embedLLM,
		parsers:    parsers,
		prompts:    prompts,
		retriever:  retriever,
		summarizer: summarizer,
		extractor:  extractor,
		simulator:  simulator,
		registry:   registry,
		orch:       orch,
	}, nil
}

// Answer routes one query through the agent and logs the outcome.
func (e *engine) Answer(ctx context.Context, query, filePath string) any {
	start := time.Now()
	env := e.orch.Answer(ctx, query, filePath)

	envType, status := envelopeInfo(env)
	if err := e.storage.LogQuery(ctx, storage.QueryLog{
		Query:        query,
		EnvelopeType: envType,
		Status:       status,
		DurationMs:   time.Since(start).Milliseconds(),
	}); err != nil {
		slog.Warn("clauselens: query log write failed", "error", err)
	}
	return env
}

// Storage returns the upload registry and query log.
func (e *engine) Storage() *storage.Store {
	return e.storage
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.storage.Close()
}

// envelopeInfo reads the type and status off a response envelope for the
// query log.
func envelopeInfo(env any) (envType, status string) {
	switch v := env.(type) {
	case agent.SimpleDialogue:
		return v.Type, v.Status
	case agent.Cases:
		return v.Type, v.Status
	case agent.Simulation:
		return v.Type, v.Status
	default:
		return "unknown", ""
	}
}
