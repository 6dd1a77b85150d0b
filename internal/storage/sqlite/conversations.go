// ABOUTME: Conversation storage with per-turn transactional appends
// ABOUTME: Conversations are created lazily on their first turn
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/bookbuddy/internal/models"
)

// ConversationStore handles conversation persistence
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a new ConversationStore
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// GetConversation loads a conversation with its messages in order
func (s *ConversationStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Do(ctx, func(ctx context.Context) error {
		var owner sql.NullString
		err := s.db.conn.QueryRowContext(ctx, `
			SELECT id, owner_id, created_at, updated_at FROM conversations WHERE id = ?
		`, id).Scan(&conv.ID, &owner, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			return err
		}
		conv.OwnerID = owner.String

		rows, err := s.db.conn.QueryContext(ctx, `
			SELECT role, content, citations, confidence, created_at
			FROM conversation_messages
			WHERE conversation_id = ?
			ORDER BY id ASC
		`, id)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		conv.Messages = nil
		for rows.Next() {
			var (
				msg        models.Message
				role       string
				citations  sql.NullString
				confidence sql.NullFloat64
			)
			if err := rows.Scan(&role, &msg.Content, &citations, &confidence, &msg.CreatedAt); err != nil {
				return err
			}
			msg.Role = models.Role(role)
			if citations.Valid && citations.String != "" {
				if err := json.Unmarshal([]byte(citations.String), &msg.Citations); err != nil {
					return fmt.Errorf("failed to decode citations: %w", err)
				}
			}
			if confidence.Valid {
				c := confidence.Float64
				msg.Confidence = &c
			}
			conv.Messages = append(conv.Messages, msg)
		}
		return rows.Err()
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// AppendTurn creates the conversation if needed and appends exactly one user
// and one assistant message in a single transaction
func (s *ConversationStore) AppendTurn(ctx context.Context, conversationID, ownerID string, user, assistant models.Message) error {
	if user.Role != models.RoleUser || assistant.Role != models.RoleAssistant {
		return fmt.Errorf("a turn is one user message followed by one assistant message")
	}

	now := time.Now().UTC()
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, owner_id, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
		`, conversationID, nullString(ownerID), now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}

		for _, msg := range []models.Message{user, assistant} {
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = now
			}
			var citations sql.NullString
			if len(msg.Citations) > 0 {
				data, err := json.Marshal(msg.Citations)
				if err != nil {
					return fmt.Errorf("failed to encode citations: %w", err)
				}
				citations = sql.NullString{String: string(data), Valid: true}
			}
			var confidence sql.NullFloat64
			if msg.Confidence != nil {
				confidence = sql.NullFloat64{Float64: *msg.Confidence, Valid: true}
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_messages (conversation_id, role, content, citations, confidence, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, conversationID, string(msg.Role), msg.Content, citations, confidence, msg.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to append %s message: %w", msg.Role, err)
			}
		}
		return nil
	})
}

// ListConversations returns an owner's conversations with messages, most recently updated first
func (s *ConversationStore) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	var ids []string
	err := s.db.Do(ctx, func(ctx context.Context) error {
		ids = nil
		rows, err := s.db.conn.QueryContext(ctx, `
			SELECT id FROM conversations WHERE owner_id IS ? ORDER BY updated_at DESC, rowid DESC
		`, nullString(ownerID))
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	convs := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, nil
}
