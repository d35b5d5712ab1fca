package caselaw

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Embedder produces embedding vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CaseMatch pairs a corpus case with its similarity to a query.
type CaseMatch struct {
	Case  Case
	Score float64
	Index int
}

// Retriever serves similarity lookups over the case-law corpus. Load builds
// or reads the embedding archive once; afterwards the index is immutable and
// every lookup is a lock-free read.
type Retriever struct {
	dbPath      string
	archivePath string
	embedder    Embedder

	loadOnce sync.Once
	loadErr  error
	cases    []Case
	index    *Index
}

// NewRetriever creates a retriever for the corpus at dbPath. An empty
// archivePath derives the archive location from dbPath (".json" becomes
// "_embeddings.bin").
func NewRetriever(dbPath, archivePath string, embedder Embedder) *Retriever {
	if archivePath == "" {
		archivePath = strings.TrimSuffix(dbPath, ".json") + "_embeddings.bin"
	}
	return &Retriever{dbPath: dbPath, archivePath: archivePath, embedder: embedder}
}

// Load reads the corpus and the embedding archive, building and persisting
// the archive when it is absent or stale. Calling it again is a no-op that
// returns the first outcome.
func (r *Retriever) Load(ctx context.Context) error {
	r.loadOnce.Do(func() { r.loadErr = r.load(ctx) })
	return r.loadErr
}

func (r *Retriever) load(ctx context.Context) error {
	cases, err := LoadCases(r.dbPath)
	if err != nil {
		return err
	}
	r.cases = cases

	// Keys carry the clause pattern the corpus is searched by; values hold
	// the precedent text returned to callers.
	texts := make([]string, len(cases))
	for i, c := range cases {
		texts[i] = c.Key
	}

	ix, err := LoadArchive(r.archivePath)
	if err == nil {
		if ix.Len() == len(texts) {
			r.index = ix
			slog.Info("caselaw: embedding archive loaded",
				"path", r.archivePath, "cases", ix.Len(), "dim", ix.Dim())
			return nil
		}
		slog.Warn("caselaw: embedding archive stale, rebuilding",
			"archive_rows", ix.Len(), "corpus_rows", len(texts))
	} else if !os.IsNotExist(err) {
		slog.Warn("caselaw: embedding archive unreadable, rebuilding",
			"path", r.archivePath, "error", err)
	}

	start := time.Now()
	slog.Info("caselaw: building embedding archive", "cases", len(texts))
	vectors, err := r.embedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding case corpus: %w", err)
	}

	built, err := BuildIndex(texts, vectors)
	if err != nil {
		return err
	}
	if err := SaveArchive(r.archivePath, built); err != nil {
		return fmt.Errorf("saving embedding archive: %w", err)
	}
	r.index = built

	slog.Info("caselaw: embedding archive built",
		"path", r.archivePath, "cases", built.Len(), "dim", built.Dim(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// embedAll embeds the corpus in batches. A failed batch fails the build;
// partial archives are never written.
func (r *Retriever) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	const batchSize = 32

	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := r.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("batch %d-%d returned %d vectors", i, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds text and asserts the result matches the archive
// dimension, so a model/archive mismatch fails on first use instead of
// silently scoring garbage.
func (r *Retriever) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if r.index == nil {
		return nil, fmt.Errorf("retriever not loaded")
	}
	vecs, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding for query")
	}
	if d := r.index.Dim(); d != 0 && len(vecs[0]) != d {
		return nil, fmt.Errorf("embedding dimension %d does not match archive dimension %d", len(vecs[0]), d)
	}
	return vecs[0], nil
}

// MostSimilar returns the closest case to text.
func (r *Retriever) MostSimilar(ctx context.Context, text string) (CaseMatch, error) {
	q, err := r.EmbedQuery(ctx, text)
	if err != nil {
		return CaseMatch{}, err
	}
	hit, err := r.index.MostSimilar(q)
	if err != nil {
		return CaseMatch{}, err
	}
	return r.matchOf(hit), nil
}

// TopK returns the k closest cases to text.
func (r *Retriever) TopK(ctx context.Context, text string, k int) ([]CaseMatch, error) {
	q, err := r.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.TopKVector(q, k)
}

// TopKVector ranks an already-embedded query against the index.
func (r *Retriever) TopKVector(q []float32, k int) ([]CaseMatch, error) {
	if r.index == nil {
		return nil, fmt.Errorf("retriever not loaded")
	}
	hits, err := r.index.TopK(q, k)
	if err != nil {
		return nil, err
	}
	matches := make([]CaseMatch, len(hits))
	for i, h := range hits {
		matches[i] = r.matchOf(h)
	}
	return matches, nil
}

func (r *Retriever) matchOf(h Hit) CaseMatch {
	return CaseMatch{Case: r.cases[h.Index], Score: h.Score, Index: h.Index}
}

// Cases returns the loaded corpus.
func (r *Retriever) Cases() []Case { return r.cases }

// Index returns the loaded embedding index.
func (r *Retriever) Index() *Index { return r.index }
