package caselaw

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero left", []float32{0, 0}, []float32{1, 1}, 0},
		{"zero right", []float32{1, 1}, []float32{0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
			if math.IsNaN(got) {
				t.Error("Cosine returned NaN")
			}
		})
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.4, 0.8, -0.5}

	ab := Cosine(a, b)
	ba := Cosine(b, a)
	if ab != ba {
		t.Errorf("Cosine(a,b) = %v, Cosine(b,a) = %v; want equal", ab, ba)
	}
	if ab < -1 || ab > 1 {
		t.Errorf("Cosine = %v, want within [-1, 1]", ab)
	}
}

func mustIndex(t *testing.T, texts []string, vectors [][]float32) *Index {
	t.Helper()
	ix, err := BuildIndex(texts, vectors)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return ix
}

func TestBuildIndexValidation(t *testing.T) {
	if _, err := BuildIndex([]string{"a"}, [][]float32{{1}, {2}}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := BuildIndex([]string{"a", "b"}, [][]float32{{1, 2}, {1}}); err == nil {
		t.Error("expected error for ragged dimensions")
	}
	if _, err := BuildIndex([]string{"a"}, [][]float32{{}}); err == nil {
		t.Error("expected error for empty vector")
	}
	ix, err := BuildIndex(nil, nil)
	if err != nil {
		t.Fatalf("BuildIndex(empty): %v", err)
	}
	if ix.Len() != 0 || ix.Dim() != 0 {
		t.Errorf("empty index Len/Dim = %d/%d, want 0/0", ix.Len(), ix.Dim())
	}
}

func TestTopKOrdering(t *testing.T) {
	ix := mustIndex(t,
		[]string{"far", "near", "mid"},
		[][]float32{{0, 1}, {1, 0}, {1, 1}},
	)

	hits, err := ix.TopK([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}

	wantOrder := []int{1, 2, 0} // near (1.0), mid (~0.707), far (0.0)
	for i, want := range wantOrder {
		if hits[i].Index != want {
			t.Errorf("hits[%d].Index = %d, want %d", i, hits[i].Index, want)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, hits[i].Score, hits[i-1].Score)
		}
	}
}

func TestTopKTieBreaksByLowerIndex(t *testing.T) {
	// Rows 1 and 2 are identical, so they tie on every query.
	ix := mustIndex(t,
		[]string{"a", "b", "c"},
		[][]float32{{0, 1}, {1, 0}, {1, 0}},
	)

	hits, err := ix.TopK([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if hits[0].Index != 1 || hits[1].Index != 2 {
		t.Errorf("tie order = [%d, %d], want [1, 2]", hits[0].Index, hits[1].Index)
	}
}

func TestTopKBounds(t *testing.T) {
	ix := mustIndex(t, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})

	if hits, _ := ix.TopK([]float32{1, 0}, 0); len(hits) != 0 {
		t.Errorf("k=0 returned %d hits, want 0", len(hits))
	}
	if hits, _ := ix.TopK([]float32{1, 0}, -1); len(hits) != 0 {
		t.Errorf("k=-1 returned %d hits, want 0", len(hits))
	}
	hits, err := ix.TopK([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("k=10 returned %d hits, want 2", len(hits))
	}

	if _, err := ix.TopK([]float32{1, 0, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMostSimilarAgreesWithTopK(t *testing.T) {
	ix := mustIndex(t,
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0}, {0.5, 0.5}, {0.5, 0.5}, {0, 1}},
	)

	queries := [][]float32{
		{1, 0},
		{0, 1},
		{1, 1},   // ties rows 1 and 2
		{0.7, 0.7},
		{0, 0},   // all scores zero: full tie
	}

	for _, q := range queries {
		best, err := ix.MostSimilar(q)
		if err != nil {
			t.Fatalf("MostSimilar(%v): %v", q, err)
		}
		top, err := ix.TopK(q, 1)
		if err != nil {
			t.Fatalf("TopK(%v, 1): %v", q, err)
		}
		if len(top) != 1 {
			t.Fatalf("TopK(%v, 1) returned %d hits", q, len(top))
		}
		if best != top[0] {
			t.Errorf("query %v: MostSimilar = %+v, TopK(1) = %+v", q, best, top[0])
		}
	}
}

func TestMostSimilarEmptyIndex(t *testing.T) {
	ix := mustIndex(t, nil, nil)
	if _, err := ix.MostSimilar([]float32{1}); err == nil {
		t.Error("expected error for empty index")
	}
}

func TestZeroNormRowNeverBeatsRealMatch(t *testing.T) {
	// Row 0 has zero norm and sits at the lowest index; a real match must
	// still win because zero-norm rows score exactly 0.
	ix := mustIndex(t,
		[]string{"dead", "live"},
		[][]float32{{0, 0}, {0.1, 0.1}},
	)

	best, err := ix.MostSimilar([]float32{1, 1})
	if err != nil {
		t.Fatalf("MostSimilar: %v", err)
	}
	if best.Index != 1 {
		t.Errorf("best index = %d, want 1 (zero-norm row selected)", best.Index)
	}
	if best.Score <= 0 {
		t.Errorf("best score = %v, want > 0", best.Score)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases_embeddings.bin")

	texts := []string{"판례 하나", "판례 둘", "판례 셋"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}, {-0.5, 0.6}}
	ix := mustIndex(t, texts, vectors)

	if err := SaveArchive(path, ix); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}

	loaded, err := LoadArchive(path)
	if err != nil {
		t.Fatalf("LoadArchive: %v", err)
	}
	if loaded.Len() != 3 || loaded.Dim() != 2 {
		t.Fatalf("loaded Len/Dim = %d/%d, want 3/2", loaded.Len(), loaded.Dim())
	}
	for i := range texts {
		if loaded.Text(i) != texts[i] {
			t.Errorf("text %d = %q, want %q", i, loaded.Text(i), texts[i])
		}
		for j := range vectors[i] {
			if loaded.vectors[i][j] != vectors[i][j] {
				t.Errorf("vector[%d][%d] = %v, want %v", i, j, loaded.vectors[i][j], vectors[i][j])
			}
		}
	}
}

func TestArchiveDeterministicBytes(t *testing.T) {
	dir := t.TempDir()
	ix := mustIndex(t, []string{"a", "b"}, [][]float32{{1, 2}, {3, 4}})

	p1 := filepath.Join(dir, "one.bin")
	p2 := filepath.Join(dir, "two.bin")
	if err := SaveArchive(p1, ix); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}
	if err := SaveArchive(p2, ix); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}

	b1, err := os.ReadFile(p1)
	if err != nil {
		t.Fatalf("reading %s: %v", p1, err)
	}
	b2, err := os.ReadFile(p2)
	if err != nil {
		t.Fatalf("reading %s: %v", p2, err)
	}
	if string(b1) != string(b2) {
		t.Error("two saves of the same index differ byte-wise")
	}
}

func TestArchiveNoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")
	ix := mustIndex(t, []string{"a"}, [][]float32{{1}})

	if err := SaveArchive(path, ix); err != nil {
		t.Fatalf("SaveArchive: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}
