package caselaw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Hit is one scored row of the index.
type Hit struct {
	Index int
	Score float64
}

// Index holds the corpus embeddings as parallel arrays: vectors[i] embeds
// texts[i], and every vector has the same dimension. An Index is immutable
// after construction, so concurrent readers need no locking.
type Index struct {
	texts   []string
	vectors [][]float32
	dim     int
}

// BuildIndex validates and wraps parallel arrays into an Index.
func BuildIndex(texts []string, vectors [][]float32) (*Index, error) {
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("texts/vectors length mismatch: %d vs %d", len(texts), len(vectors))
	}
	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("vector %d is empty", i)
		}
		if dim == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return &Index{texts: texts, vectors: vectors, dim: dim}, nil
}

// Len returns the number of rows.
func (ix *Index) Len() int { return len(ix.texts) }

// Dim returns the embedding dimension, 0 for an empty index.
func (ix *Index) Dim() int { return ix.dim }

// Text returns the text of row i.
func (ix *Index) Text(i int) string { return ix.texts[i] }

// Cosine returns the cosine similarity of a and b, accumulated in float64.
// Either vector having zero norm yields exactly 0, never NaN.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK returns the k highest-scoring rows for query q, ordered by score
// descending with ties broken by lower row index. k above the corpus size
// returns every row; k <= 0 returns nothing.
func (ix *Index) TopK(q []float32, k int) ([]Hit, error) {
	if ix.dim != 0 && len(q) != ix.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(q), ix.dim)
	}
	if k <= 0 || ix.Len() == 0 {
		return nil, nil
	}

	hits := make([]Hit, ix.Len())
	for i, v := range ix.vectors {
		hits[i] = Hit{Index: i, Score: Cosine(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// MostSimilar returns the single best row. The comparison is strictly
// greater, so ties keep the earliest row and the result agrees exactly with
// TopK(q, 1).
func (ix *Index) MostSimilar(q []float32) (Hit, error) {
	if ix.Len() == 0 {
		return Hit{}, fmt.Errorf("index is empty")
	}
	if ix.dim != 0 && len(q) != ix.dim {
		return Hit{}, fmt.Errorf("query dimension %d does not match index dimension %d", len(q), ix.dim)
	}

	best := Hit{Index: 0, Score: Cosine(q, ix.vectors[0])}
	for i := 1; i < len(ix.vectors); i++ {
		if s := Cosine(q, ix.vectors[i]); s > best.Score {
			best = Hit{Index: i, Score: s}
		}
	}
	return best, nil
}

// archive is the on-disk form of an Index.
type archive struct {
	Version int
	Texts   []string
	Vectors [][]float32
}

const archiveVersion = 1

// SaveArchive writes the index to path atomically: the encoded bytes go to a
// temp file in the same directory, then a rename swaps it into place.
func SaveArchive(path string, ix *Index) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(archive{
		Version: archiveVersion,
		Texts:   ix.texts,
		Vectors: ix.vectors,
	}); err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating archive dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming archive: %w", err)
	}
	return nil
}

// LoadArchive reads an index previously written by SaveArchive.
func LoadArchive(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var a archive
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	if a.Version != archiveVersion {
		return nil, fmt.Errorf("unsupported archive version %d", a.Version)
	}
	return BuildIndex(a.Texts, a.Vectors)
}
