// ABOUTME: Retrieval and answer types shared by search, rag and chat
// ABOUTME: SearchResult keeps the raw vector similarity alongside the blended score
package models

// SearchResult is one retrieved chunk
type SearchResult struct {
	ChunkID          string         `json:"chunk_id"`
	DocumentID       string         `json:"document_id"`
	DocumentTitle    string         `json:"document_title"`
	Author           string         `json:"author,omitempty"`
	ChunkIndex       int            `json:"chunk_index"`
	Page             int            `json:"page,omitempty"`
	Chapter          string         `json:"chapter,omitempty"`
	Text             string         `json:"text"`
	VectorSimilarity float64        `json:"vector_similarity"`
	Score            float64        `json:"score"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Citation points an answer back at a source passage
type Citation struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	Page          int    `json:"page,omitempty"`
	Chapter       string `json:"chapter,omitempty"`
	Excerpt       string `json:"excerpt"`
}

// Intent is the routing decision for a query
type Intent string

const (
	IntentChat   Intent = "CHAT"
	IntentSearch Intent = "SEARCH"
)

// Answer is the orchestrator's result. Confidence is always within [0,1].
type Answer struct {
	Text       string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	Intent     Intent     `json:"intent"`
}
