// ABOUTME: Chunk storage and vector similarity search for SQLite
// ABOUTME: Vectors are BLOBs; cosine similarity is computed in Go over filtered candidates
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/bookbuddy/internal/models"
)

// ChunkStore handles chunk persistence
type ChunkStore struct {
	db        *DB
	dimension int
}

// NewChunkStore creates a new ChunkStore. A positive dimension is enforced on insert.
func NewChunkStore(db *DB, dimension int) *ChunkStore {
	return &ChunkStore{db: db, dimension: dimension}
}

// ChunkQuery selects chunks by vector similarity and metadata
type ChunkQuery struct {
	Vector        []float64
	Limit         int
	MinSimilarity float64
	DocumentID    string
	// Author matches as a case-insensitive substring
	Author string
	// MinPage and MaxPage bound the page inclusively; zero means unbounded
	MinPage int
	MaxPage int
}

// InsertChunk stores one chunk with its embedding. Chunks are immutable.
func (s *ChunkStore) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("chunk %d has no embedding", chunk.ChunkIndex)
	}
	if s.dimension > 0 && len(chunk.Embedding) != s.dimension {
		return fmt.Errorf("invalid embedding dimension: expected %d, got %d", s.dimension, len(chunk.Embedding))
	}
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(chunk.Metadata) > 0 {
		data, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, page, chapter, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, chunk.ID, chunk.DocumentID, chunk.ChunkIndex, nullInt(chunk.Page), nullString(chunk.Chapter),
		chunk.Text, vectorToBlob(chunk.Embedding), metadata, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
	}
	return nil
}

// CountChunks returns how many chunks a document has
func (s *ChunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.Do(ctx, func(ctx context.Context) error {
		return s.db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// ListChunks returns a document's chunks in index order
func (s *ChunkStore) ListChunks(ctx context.Context, documentID string) ([]models.Chunk, error) {
	var chunks []models.Chunk
	err := s.db.Do(ctx, func(ctx context.Context) error {
		chunks = nil
		rows, err := s.db.conn.QueryContext(ctx, `
			SELECT id, document_id, chunk_index, page, chapter, text, embedding, metadata, created_at
			FROM chunks
			WHERE document_id = ?
			ORDER BY chunk_index ASC
		`, documentID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				c        models.Chunk
				page     sql.NullInt64
				chapter  sql.NullString
				blob     []byte
				metadata sql.NullString
			)
			if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &page, &chapter, &c.Text,
				&blob, &metadata, &c.CreatedAt); err != nil {
				return err
			}
			c.Page = int(page.Int64)
			c.Chapter = chapter.String
			c.Embedding = blobToVector(blob)
			c.Metadata = decodeMetadata(metadata)
			chunks = append(chunks, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// SearchChunks returns up to q.Limit chunks with similarity >= q.MinSimilarity,
// most similar first (ascending cosine distance)
func (s *ChunkStore) SearchChunks(ctx context.Context, q ChunkQuery) ([]models.SearchResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if q.DocumentID != "" {
		where = append(where, "c.document_id = ?")
		args = append(args, q.DocumentID)
	}
	if author := strings.TrimSpace(q.Author); author != "" {
		where = append(where, `LOWER(d.author) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(author))+"%")
	}
	if q.MinPage > 0 {
		where = append(where, "c.page >= ?")
		args = append(args, q.MinPage)
	}
	if q.MaxPage > 0 {
		where = append(where, "c.page <= ?")
		args = append(args, q.MaxPage)
	}

	query := `
		SELECT c.id, c.document_id, d.title, d.author, c.chunk_index, c.page, c.chapter,
			c.text, c.embedding, c.metadata
		FROM chunks c
		JOIN documents d ON d.id = c.document_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY c.document_id, c.chunk_index"

	var results []models.SearchResult
	err := s.db.Do(ctx, func(ctx context.Context) error {
		results = nil
		rows, err := s.db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				r        models.SearchResult
				author   sql.NullString
				page     sql.NullInt64
				chapter  sql.NullString
				blob     []byte
				metadata sql.NullString
			)
			if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentTitle, &author, &r.ChunkIndex,
				&page, &chapter, &r.Text, &blob, &metadata); err != nil {
				return err
			}

			similarity := CosineSimilarity(q.Vector, blobToVector(blob))
			if similarity < q.MinSimilarity {
				continue
			}
			r.Author = author.String
			r.Page = int(page.Int64)
			r.Chapter = chapter.String
			r.Metadata = decodeMetadata(metadata)
			r.VectorSimilarity = similarity
			r.Score = similarity
			results = append(results, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	// Sort by similarity descending; equal scores keep document order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].VectorSimilarity > results[j].VectorSimilarity
	})

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func decodeMetadata(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
