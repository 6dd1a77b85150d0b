// ABOUTME: Vector search over stored chunks with a lexical-overlap rerank
// ABOUTME: Over-fetches 2x the limit, blends 0.7 vector with 0.3 Jaccard, and keeps the top results
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/harper/bookbuddy/internal/llm"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
)

const (
	DefaultLimit         = 10
	DefaultMinSimilarity = 0.5

	// Blend weights for the final score
	VectorWeight  = 0.7
	LexicalWeight = 0.3

	// overFetch multiplies the limit to give the reranker room
	overFetch = 2
	// minWordLength excludes short words from the lexical overlap
	minWordLength = 4
)

// ChunkSearcher is the record store's similarity primitive
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, q sqlite.ChunkQuery) ([]models.SearchResult, error)
}

// Options narrows a search. A zero Limit or nil MinSimilarity falls back to the engine defaults.
type Options struct {
	DocumentID    string
	Limit         int
	MinSimilarity *float64
	Author        string
	MinPage       int
	MaxPage       int
}

// Engine answers similarity queries
type Engine struct {
	store         ChunkSearcher
	embedder      llm.Embedder
	limit         int
	minSimilarity float64
	log           logger.Logger
}

// NewEngine creates an engine with default limit 10 and minimum similarity 0.5
func NewEngine(store ChunkSearcher, embedder llm.Embedder) *Engine {
	return &Engine{
		store:         store,
		embedder:      embedder,
		limit:         DefaultLimit,
		minSimilarity: DefaultMinSimilarity,
		log:           logger.Component("search"),
	}
}

// WithDefaults overrides the limit and threshold used when Options leaves them unset.
// A threshold of 0 is honored; values outside [0,1] are ignored.
func (e *Engine) WithDefaults(limit int, minSimilarity float64) *Engine {
	if limit > 0 {
		e.limit = limit
	}
	if minSimilarity >= 0 && minSimilarity <= 1 {
		e.minSimilarity = minSimilarity
	}
	return e
}

// Threshold returns a MinSimilarity for Options
func Threshold(v float64) *float64 {
	return &v
}

// Search embeds the query once and returns up to Limit results by descending blended score.
// No match above the threshold is an empty result, not an error.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]models.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = e.limit
	}
	minSimilarity := e.minSimilarity
	if opts.MinSimilarity != nil {
		minSimilarity = *opts.MinSimilarity
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := e.store.SearchChunks(ctx, sqlite.ChunkQuery{
		Vector:        vector,
		Limit:         limit * overFetch,
		MinSimilarity: minSimilarity,
		DocumentID:    opts.DocumentID,
		Author:        opts.Author,
		MinPage:       opts.MinPage,
		MaxPage:       opts.MaxPage,
	})
	if err != nil {
		return nil, err
	}

	results := Rerank(candidates, query)
	if len(results) > limit {
		results = results[:limit]
	}

	e.log.Debug("search complete", "candidates", len(candidates), "returned", len(results))
	return results, nil
}

// Rerank blends each candidate's vector similarity with its word overlap
// against the query. Ties keep the incoming order.
func Rerank(results []models.SearchResult, query string) []models.SearchResult {
	queryWords := wordSet(query)

	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		r.Score = VectorWeight*r.VectorSimilarity + LexicalWeight*Jaccard(queryWords, wordSet(r.Text))
		out[i] = r
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both are empty
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// wordSet returns the case-folded whitespace words longer than three characters
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) >= minWordLength {
			set[w] = struct{}{}
		}
	}
	return set
}
