// ABOUTME: User memory storage: append-only quotes, preferences, goals, and notes
// ABOUTME: Listing is newest first with owner, document, and type filters
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/bookbuddy/internal/models"
)

// MemoryStore handles user memory persistence
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// MemoryFilter narrows ListMemories. OwnerID is required.
type MemoryFilter struct {
	OwnerID    string
	DocumentID string
	// IncludeGlobal also matches memories not tied to any document
	IncludeGlobal bool
	Type          models.MemoryType
	Limit         int
}

// SaveMemory appends a memory entry
func (s *MemoryStore) SaveMemory(ctx context.Context, m *models.UserMemory) error {
	if m.OwnerID == "" {
		return fmt.Errorf("memory owner is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid memory type %q", m.Type)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("memory text is required")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(m.Metadata) > 0 {
		data, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode memory metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_memories (id, owner_id, document_id, type, text, page, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OwnerID, nullString(m.DocumentID), string(m.Type), m.Text, nullInt(m.Page), metadata, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// ListMemories returns matching memories, newest first
func (s *MemoryStore) ListMemories(ctx context.Context, f MemoryFilter) ([]models.UserMemory, error) {
	if f.OwnerID == "" {
		return nil, fmt.Errorf("memory owner is required")
	}

	where := []string{"owner_id = ?"}
	args := []any{f.OwnerID}
	if f.DocumentID != "" {
		if f.IncludeGlobal {
			where = append(where, "(document_id = ? OR document_id IS NULL)")
		} else {
			where = append(where, "document_id = ?")
		}
		args = append(args, f.DocumentID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}

	query := `SELECT id, owner_id, document_id, type, text, page, metadata, created_at
		FROM user_memories WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var memories []models.UserMemory
	err := s.db.Do(ctx, func(ctx context.Context) error {
		memories = nil
		rows, err := s.db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				m        models.UserMemory
				docID    sql.NullString
				memType  string
				page     sql.NullInt64
				metadata sql.NullString
			)
			if err := rows.Scan(&m.ID, &m.OwnerID, &docID, &memType, &m.Text, &page, &metadata, &m.CreatedAt); err != nil {
				return err
			}
			m.DocumentID = docID.String
			m.Type = models.MemoryType(memType)
			m.Page = int(page.Int64)
			m.Metadata = decodeMetadata(metadata)
			memories = append(memories, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return memories, nil
}
