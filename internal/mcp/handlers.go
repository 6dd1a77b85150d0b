// ABOUTME: MCP tool handler implementations for the BookBuddy server
// ABOUTME: Tool failures are reported as error results; Go errors are reserved for the transport
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/bookbuddy/internal/chat"
	"github.com/harper/bookbuddy/internal/library"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/rag"
	"github.com/harper/bookbuddy/internal/search"
	"github.com/mark3labs/mcp-go/mcp"
)

// Searcher returns ranked passages
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]models.SearchResult, error)
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	library  *library.Service
	chat     *chat.Service
	searcher Searcher
	userID   string
	persona  rag.Persona
	log      logger.Logger
}

// UploadDocument handles the upload_document tool
func (h *Handlers) UploadDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError("file_path argument is required and must be a string"), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read file: %v", err)), nil
	}

	result, err := h.library.Upload(ctx, library.UploadRequest{
		Filename: filepath.Base(path),
		Data:     data,
		Title:    request.GetString("title", ""),
		Author:   request.GetString("author", ""),
		Language: request.GetString("language", ""),
		OwnerID:  h.caller(request),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("upload failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"document_id": result.Document.ID,
		"job_id":      result.JobID,
		"title":       result.Document.Title,
		"file_type":   result.Document.FileType,
		"status":      models.JobPending,
	})
}

// IngestionStatus handles the ingestion_status tool
func (h *Handlers) IngestionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id argument is required and must be a string"), nil
	}

	report, err := h.library.Status(ctx, jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get job: %v", err)), nil
	}
	return jsonResult(report)
}

// AskQuestion handles the ask_question tool
func (h *Handlers) AskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	answer, err := h.chat.Ask(ctx, chat.AskRequest{
		Question:   question,
		DocumentID: request.GetString("document_id", ""),
		OwnerID:    h.caller(request),
		K:          request.GetInt("k", rag.DefaultK),
		Persona:    h.personaFor(request),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to answer: %v", err)), nil
	}
	return jsonResult(answer)
}

// SearchPassages handles the search_passages tool
func (h *Handlers) SearchPassages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	opts := search.Options{
		DocumentID: request.GetString("document_id", ""),
		Limit:      request.GetInt("limit", 0),
		Author:     request.GetString("author", ""),
		MinPage:    request.GetInt("min_page", 0),
		MaxPage:    request.GetInt("max_page", 0),
	}
	if _, ok := request.GetArguments()["min_similarity"]; ok {
		opts.MinSimilarity = search.Threshold(request.GetFloat("min_similarity", 0))
	}

	results, err := h.searcher.Search(ctx, query, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	passages := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		passages = append(passages, map[string]interface{}{
			"chunk_id":       r.ChunkID,
			"document_id":    r.DocumentID,
			"document_title": r.DocumentTitle,
			"page":           r.Page,
			"chapter":        r.Chapter,
			"text":           r.Text,
			"similarity":     r.VectorSimilarity,
			"score":          r.Score,
		})
	}
	return jsonResult(map[string]interface{}{
		"query":    query,
		"passages": passages,
	})
}

// SendChatMessage handles the send_chat_message tool
func (h *Handlers) SendChatMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}

	result, err := h.chat.Send(ctx, chat.SendRequest{
		ConversationID: request.GetString("conversation_id", ""),
		Message:        message,
		DocumentID:     request.GetString("document_id", ""),
		OwnerID:        h.caller(request),
		Persona:        h.personaFor(request),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send message: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": result.ConversationID,
		"answer":          result.Answer.Text,
		"citations":       result.Answer.Citations,
		"confidence":      result.Answer.Confidence,
		"intent":          result.Answer.Intent,
	})
}

// GetConversation handles the get_conversation tool
func (h *Handlers) GetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError("conversation_id argument is required and must be a string"), nil
	}

	conv, err := h.chat.Conversation(ctx, id, h.caller(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get conversation: %v", err)), nil
	}

	messages := make([]map[string]interface{}, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		entry := map[string]interface{}{
			"role":       msg.Role,
			"content":    msg.Content,
			"created_at": msg.CreatedAt.Format(time.RFC3339),
		}
		if len(msg.Citations) > 0 {
			entry["citations"] = msg.Citations
		}
		if msg.Confidence != nil {
			entry["confidence"] = *msg.Confidence
		}
		messages = append(messages, entry)
	}

	return jsonResult(map[string]interface{}{
		"conversation_id": conv.ID,
		"messages":        messages,
	})
}

// SaveMemory handles the save_memory tool
func (h *Handlers) SaveMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	owner := h.caller(request)
	if owner == "" {
		return mcp.NewToolResultError("user_id is required to save memories"), nil
	}

	memory := &models.UserMemory{
		OwnerID:    owner,
		DocumentID: request.GetString("document_id", ""),
		Type:       models.MemoryType(request.GetString("memory_type", string(models.MemoryNote))),
		Text:       text,
		Page:       request.GetInt("page", 0),
	}
	if err := h.chat.SaveMemory(ctx, memory); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save memory: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"success":   true,
		"memory_id": memory.ID,
	})
}

// ListLibrary handles the list_library tool
func (h *Handlers) ListLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.library.ListAll(ctx, h.caller(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list library: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"documents": entries,
	})
}

// DeleteDocument handles the delete_document tool
func (h *Handlers) DeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id argument is required and must be a string"), nil
	}

	if err := h.library.Delete(ctx, id, h.caller(request)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete document: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"success":     true,
		"document_id": id,
	})
}

func (h *Handlers) caller(request mcp.CallToolRequest) string {
	return request.GetString("user_id", h.userID)
}

func (h *Handlers) personaFor(request mcp.CallToolRequest) rag.Persona {
	if name := request.GetString("persona", ""); name != "" {
		return rag.ParsePersona(name)
	}
	return h.persona
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
