// ABOUTME: Tests for vector search and the Jaccard rerank
// ABOUTME: Uses in-memory SQLite with hand-built vectors so similarities are exact
package search

import (
	"context"
	"errors"
	"testing"

	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEmbedder returns a fixed vector per query text
type mapEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vectors[text], nil
}

func (m *mapEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// recordingSearcher captures the query sent to the store
type recordingSearcher struct {
	got     sqlite.ChunkQuery
	results []models.SearchResult
}

func (r *recordingSearcher) SearchChunks(_ context.Context, q sqlite.ChunkQuery) ([]models.SearchResult, error) {
	r.got = q
	return r.results, nil
}

func seedCorpus(t *testing.T) (*sqlite.Storage, *models.Document) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.NewStorageInMemory(sqlite.WithVectorDimension(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	doc := &models.Document{Title: "Pride and Prejudice", Author: "Jane Austen", FileType: models.FileTypeTXT, StorageKey: "k"}
	require.NoError(t, store.CreateDocument(ctx, doc))

	chunks := []struct {
		text string
		vec  []float64
		page int
	}{
		{"the weather in hertfordshire was mild", []float64{1, 0}, 1},
		{"marriage proposal from darcy rejected", []float64{0.95, 0.31}, 2},
		{"elizabeth discusses marriage and darcy pride", []float64{0.9, 0.44}, 3},
		{"unrelated passage about carriages", []float64{0, 1}, 4},
	}
	for i, c := range chunks {
		err := store.InsertChunk(ctx, &models.Chunk{
			DocumentID: doc.ID, ChunkIndex: i, Page: c.page, Text: c.text, Embedding: c.vec,
		})
		require.NoError(t, err)
	}
	return store, doc
}

func TestSearchRerankOrdersByBlendedScore(t *testing.T) {
	store, _ := seedCorpus(t)
	query := "darcy marriage proposal"
	emb := &mapEmbedder{vectors: map[string][]float64{query: {1, 0}}}

	results, err := NewEngine(store, emb).Search(context.Background(), query, Options{Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, emb.calls, "query is embedded once")
	assert.Equal(t, "marriage proposal from darcy rejected", results[0].Text,
		"lexical overlap lifts the second-most similar chunk to the top")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.VectorSimilarity, DefaultMinSimilarity)
		assert.Equal(t, "Jane Austen", r.Author)
	}
}

func TestSearchThreshold(t *testing.T) {
	store, _ := seedCorpus(t)
	emb := &mapEmbedder{vectors: map[string][]float64{"q": {0, 1}}}

	results, err := NewEngine(store, emb).Search(context.Background(), "q", Options{MinSimilarity: Threshold(0.95)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4, results[0].Page)

	emb.vectors["q"] = []float64{-1, 0}
	results, err = NewEngine(store, emb).Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Empty(t, results, "nothing above threshold is an empty result")
}

func TestSearchPassesFiltersAndOverFetches(t *testing.T) {
	rec := &recordingSearcher{}
	emb := &mapEmbedder{vectors: map[string][]float64{"q": {1, 0}}}

	_, err := NewEngine(rec, emb).Search(context.Background(), "q", Options{
		DocumentID: "doc-1", Limit: 5, Author: "austen", MinPage: 2, MaxPage: 9,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, rec.got.Limit, "candidates are over-fetched at twice the limit")
	assert.Equal(t, DefaultMinSimilarity, rec.got.MinSimilarity)
	assert.Equal(t, "doc-1", rec.got.DocumentID)
	assert.Equal(t, "austen", rec.got.Author)
	assert.Equal(t, 2, rec.got.MinPage)
	assert.Equal(t, 9, rec.got.MaxPage)

	_, err = NewEngine(rec, emb).WithDefaults(3, 0.3).Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, rec.got.Limit)
	assert.Equal(t, 0.3, rec.got.MinSimilarity)
}

func TestSearchZeroThresholdIsHonored(t *testing.T) {
	rec := &recordingSearcher{}
	emb := &mapEmbedder{vectors: map[string][]float64{"q": {1, 0}}}

	_, err := NewEngine(rec, emb).WithDefaults(10, 0).Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Zero(t, rec.got.MinSimilarity, "a configured default of 0 is kept")

	_, err = NewEngine(rec, emb).Search(context.Background(), "q", Options{MinSimilarity: Threshold(0)})
	require.NoError(t, err)
	assert.Zero(t, rec.got.MinSimilarity, "an explicit 0 overrides the default")

	_, err = NewEngine(rec, emb).WithDefaults(10, 1.5).Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMinSimilarity, rec.got.MinSimilarity, "out-of-range defaults are ignored")
}

func TestSearchTruncatesToLimit(t *testing.T) {
	rec := &recordingSearcher{}
	for i := 0; i < 6; i++ {
		rec.results = append(rec.results, models.SearchResult{ChunkIndex: i, VectorSimilarity: 0.9 - float64(i)*0.01})
	}
	emb := &mapEmbedder{vectors: map[string][]float64{"q": {1, 0}}}

	results, err := NewEngine(rec, emb).Search(context.Background(), "q", Options{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchEmbeddingFailure(t *testing.T) {
	emb := &mapEmbedder{err: errors.New("provider down")}
	_, err := NewEngine(&recordingSearcher{}, emb).Search(context.Background(), "q", Options{})
	assert.ErrorContains(t, err, "failed to embed query")
}

func TestRerankStableOnTies(t *testing.T) {
	in := []models.SearchResult{
		{ChunkID: "a", VectorSimilarity: 0.8, Text: "nothing shared"},
		{ChunkID: "b", VectorSimilarity: 0.8, Text: "nothing shared"},
		{ChunkID: "c", VectorSimilarity: 0.8, Text: "nothing shared"},
	}
	out := Rerank(in, "zzzz")
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID})
	assert.InDelta(t, 0.56, out[0].Score, 1e-9)
	assert.Equal(t, 0.8, in[0].VectorSimilarity, "input is not mutated")
	assert.Zero(t, in[0].Score)
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "darcy marriage", "darcy marriage", 1},
		{"disjoint", "darcy", "bennet", 0},
		{"half", "darcy marriage", "darcy", 0.5},
		{"short words ignored", "the cat sat", "the cat sat", 0},
		{"case folded", "DARCY", "darcy", 1},
		{"empty", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(wordSet(tt.a), wordSet(tt.b)), 1e-9)
		})
	}
}
