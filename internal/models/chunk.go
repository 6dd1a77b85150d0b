// ABOUTME: Chunk is a citation-addressable window of document text plus its embedding
// ABOUTME: Indices are dense per document and never reused
package models

import "time"

// Chunk is a bounded slice of a document. Page 0 means the page is unknown.
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	ChunkIndex int            `json:"chunk_index"`
	Page       int            `json:"page,omitempty"`
	Chapter    string         `json:"chapter,omitempty"`
	Text       string         `json:"text"`
	Embedding  []float64      `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
