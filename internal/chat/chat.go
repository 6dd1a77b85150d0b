// ABOUTME: Conversation and memory service layered over the query orchestrator
// ABOUTME: Persists each question and answer as one turn and feeds saved memories into answers
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/rag"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
)

// DefaultMemoryEntries is how many recent memories are fed into an answer
const DefaultMemoryEntries = 5

var (
	// ErrEmptyMessage is returned when a chat message has no text
	ErrEmptyMessage = errors.New("message is required")
	// ErrForbidden is returned when a caller continues someone else's conversation
	ErrForbidden = errors.New("conversation belongs to another user")
)

// Store is the persistence the service needs
type Store interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	AppendTurn(ctx context.Context, conversationID, ownerID string, user, assistant models.Message) error
	SaveMemory(ctx context.Context, m *models.UserMemory) error
	ListMemories(ctx context.Context, f sqlite.MemoryFilter) ([]models.UserMemory, error)
}

// Answerer produces grounded answers
type Answerer interface {
	Answer(ctx context.Context, query string, opts rag.Options) (*models.Answer, error)
	AnswerWithHistory(ctx context.Context, query string, history []models.Message, opts rag.Options) (*models.Answer, error)
}

// Service answers one-shot questions and multi-turn conversations
type Service struct {
	store       Store
	answerer    Answerer
	memoryLimit int
	log         logger.Logger
}

// NewService creates a chat service
func NewService(store Store, answerer Answerer, log logger.Logger) *Service {
	if log == nil {
		log = logger.Component("chat")
	}
	return &Service{store: store, answerer: answerer, memoryLimit: DefaultMemoryEntries, log: log}
}

// WithMemoryLimit overrides how many memories MemoryContext includes
func (s *Service) WithMemoryLimit(n int) *Service {
	if n > 0 {
		s.memoryLimit = n
	}
	return s
}

// AskRequest is a single question without conversation state
type AskRequest struct {
	Question   string
	DocumentID string
	OwnerID    string
	K          int
	Persona    rag.Persona
}

// Ask answers a question using the caller's saved memories as context
func (s *Service) Ask(ctx context.Context, req AskRequest) (*models.Answer, error) {
	return s.answerer.Answer(ctx, req.Question, rag.Options{
		DocumentID:    req.DocumentID,
		CallerID:      req.OwnerID,
		K:             req.K,
		Persona:       req.Persona,
		MemoryContext: s.memoryContextOrEmpty(ctx, req.OwnerID, req.DocumentID),
	})
}

// SendRequest continues (or starts) a conversation
type SendRequest struct {
	// ConversationID is generated when empty
	ConversationID string
	Message        string
	DocumentID     string
	OwnerID        string
	K              int
	Persona        rag.Persona
}

// SendResult carries the answer and the conversation it was appended to
type SendResult struct {
	ConversationID string
	Answer         *models.Answer
}

// Send answers a message with the conversation's history and appends the turn
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.New().String()
	}

	var history []models.Message
	conv, err := s.store.GetConversation(ctx, convID)
	switch {
	case err == nil:
		if !canAccess(conv, req.OwnerID) {
			return nil, ErrForbidden
		}
		history = conv.Messages
	case errors.Is(err, sqlite.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	answer, err := s.answerer.AnswerWithHistory(ctx, message, history, rag.Options{
		DocumentID:    req.DocumentID,
		CallerID:      req.OwnerID,
		K:             req.K,
		Persona:       req.Persona,
		MemoryContext: s.memoryContextOrEmpty(ctx, req.OwnerID, req.DocumentID),
	})
	if err != nil {
		return nil, err
	}

	confidence := answer.Confidence
	user := models.Message{Role: models.RoleUser, Content: message}
	assistant := models.Message{
		Role:       models.RoleAssistant,
		Content:    answer.Text,
		Citations:  answer.Citations,
		Confidence: &confidence,
	}
	if err := s.store.AppendTurn(ctx, convID, req.OwnerID, user, assistant); err != nil {
		return nil, fmt.Errorf("failed to save turn: %w", err)
	}

	s.log.Debug("appended turn", "conversation_id", convID, "history", len(history))
	return &SendResult{ConversationID: convID, Answer: answer}, nil
}

// Conversation returns a stored conversation if callerID may read it
func (s *Service) Conversation(ctx context.Context, id, callerID string) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(conv, callerID) {
		return nil, ErrForbidden
	}
	return conv, nil
}

// canAccess allows the owner, and anyone for conversations started without an owner
func canAccess(conv *models.Conversation, callerID string) bool {
	return conv.OwnerID == "" || conv.OwnerID == callerID
}

// SaveMemory appends a memory for its owner
func (s *Service) SaveMemory(ctx context.Context, m *models.UserMemory) error {
	m.Text = strings.TrimSpace(m.Text)
	return s.store.SaveMemory(ctx, m)
}

// Memories lists an owner's memories, optionally scoped to a document and type
func (s *Service) Memories(ctx context.Context, ownerID, documentID string, memType models.MemoryType) ([]models.UserMemory, error) {
	return s.store.ListMemories(ctx, sqlite.MemoryFilter{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Type:       memType,
	})
}

// ListQuotes returns the quotes an owner saved from a document
func (s *Service) ListQuotes(ctx context.Context, documentID, ownerID string) ([]models.UserMemory, error) {
	return s.Memories(ctx, ownerID, documentID, models.MemoryQuote)
}

// MemoryContext renders the owner's most recent memories for a document (and
// memories tied to no document) as "type: text" entries joined with "; "
func (s *Service) MemoryContext(ctx context.Context, ownerID, documentID string) (string, error) {
	if ownerID == "" {
		return "", nil
	}
	memories, err := s.store.ListMemories(ctx, sqlite.MemoryFilter{
		OwnerID:       ownerID,
		DocumentID:    documentID,
		IncludeGlobal: true,
		Limit:         s.memoryLimit,
	})
	if err != nil {
		return "", err
	}

	parts := make([]string, len(memories))
	for i, m := range memories {
		parts[i] = m.String()
	}
	return strings.Join(parts, "; "), nil
}

func (s *Service) memoryContextOrEmpty(ctx context.Context, ownerID, documentID string) string {
	memory, err := s.MemoryContext(ctx, ownerID, documentID)
	if err != nil {
		s.log.Warn("failed to load memory context", "owner_id", ownerID, "error", err)
		return ""
	}
	return memory
}
