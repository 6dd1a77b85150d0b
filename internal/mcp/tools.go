// ABOUTME: MCP tool definitions and registration for the BookBuddy server
// ABOUTME: Exposes upload, status, answering, search, chat, memory, and library tools
package mcp

import (
	"github.com/harper/bookbuddy/internal/chat"
	"github.com/harper/bookbuddy/internal/library"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/rag"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Deps are the services the tools call into
type Deps struct {
	Library  *library.Service
	Chat     *chat.Service
	Searcher Searcher
	// UserID is the caller identity used when a tool call does not name one
	UserID  string
	Persona rag.Persona
	Log     logger.Logger
}

// NewHandlers builds handlers without registering them
func NewHandlers(deps Deps) *Handlers {
	log := deps.Log
	if log == nil {
		log = logger.Component("mcp")
	}
	persona := deps.Persona
	if persona == "" {
		persona = rag.PersonaFriend
	}
	return &Handlers{
		library:  deps.Library,
		chat:     deps.Chat,
		searcher: deps.Searcher,
		userID:   deps.UserID,
		persona:  persona,
		log:      log,
	}
}

var userIDProperty = map[string]interface{}{
	"type":        "string",
	"description": "Caller identity (defaults to the server's configured user)",
}

var documentIDProperty = map[string]interface{}{
	"type":        "string",
	"description": "Restrict to one document",
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, deps Deps) *Handlers {
	handlers := NewHandlers(deps)

	// 1. upload_document - Queue a local file for ingestion
	server.AddTool(mcp.Tool{
		Name:        "upload_document",
		Description: "Upload a PDF, EPUB, or TXT file from the local filesystem and queue it for ingestion. Returns the document and job IDs; poll ingestion_status for progress.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the book file",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Title (defaults to the file name)",
				},
				"author": map[string]interface{}{
					"type":        "string",
					"description": "Author",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Language code",
				},
				"user_id": userIDProperty,
			},
			Required: []string{"file_path"},
		},
	}, handlers.UploadDocument)

	// 2. ingestion_status - Poll an ingestion job
	server.AddTool(mcp.Tool{
		Name:        "ingestion_status",
		Description: "Get the status, progress (0-100), and chunk count of an ingestion job.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job ID returned by upload_document",
				},
			},
			Required: []string{"job_id"},
		},
	}, handlers.IngestionStatus)

	// 3. ask_question - Single grounded answer
	server.AddTool(mcp.Tool{
		Name:        "ask_question",
		Description: "Answer a question from the uploaded books with numbered citations and a confidence score.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"document_id": documentIDProperty,
				"k": map[string]interface{}{
					"type":        "number",
					"description": "Number of passages to retrieve (default: 5)",
					"default":     rag.DefaultK,
				},
				"persona": map[string]interface{}{
					"type":        "string",
					"description": "Answer tone",
					"enum":        []string{string(rag.PersonaScholar), string(rag.PersonaFriend), string(rag.PersonaQuizzer)},
				},
				"user_id": userIDProperty,
			},
			Required: []string{"question"},
		},
	}, handlers.AskQuestion)

	// 4. search_passages - Raw ranked passages
	server.AddTool(mcp.Tool{
		Name:        "search_passages",
		Description: "Find the passages most similar to a query, ranked by blended vector and word-overlap score.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"document_id": documentIDProperty,
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of passages (default: 10)",
					"default":     10,
				},
				"min_similarity": map[string]interface{}{
					"type":        "number",
					"description": "Minimum vector similarity 0-1 (default: 0.5)",
				},
				"author": map[string]interface{}{
					"type":        "string",
					"description": "Only passages from books whose author contains this text",
				},
				"min_page": map[string]interface{}{
					"type":        "number",
					"description": "First page to include",
				},
				"max_page": map[string]interface{}{
					"type":        "number",
					"description": "Last page to include",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchPassages)

	// 5. send_chat_message - Multi-turn conversation
	server.AddTool(mcp.Tool{
		Name:        "send_chat_message",
		Description: "Send a message in a conversation. The last messages of the conversation are used as context and the exchange is saved. Omit conversation_id to start a new one.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "User message",
				},
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation to continue",
				},
				"document_id": documentIDProperty,
				"persona": map[string]interface{}{
					"type":        "string",
					"description": "Answer tone: scholar, friend, or quizzer",
				},
				"user_id": userIDProperty,
			},
			Required: []string{"message"},
		},
	}, handlers.SendChatMessage)

	// 6. get_conversation - Conversation history
	server.AddTool(mcp.Tool{
		Name:        "get_conversation",
		Description: "Get every message of a conversation in order, with citations on assistant messages.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"conversation_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation ID",
				},
			},
			Required: []string{"conversation_id"},
		},
	}, handlers.GetConversation)

	// 7. save_memory - Quotes, preferences, goals, notes
	server.AddTool(mcp.Tool{
		Name:        "save_memory",
		Description: "Save a quote, preference, goal, or note. Recent memories are used as context for later answers.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "What to remember",
				},
				"memory_type": map[string]interface{}{
					"type":        "string",
					"description": "Kind of memory",
					"enum":        []string{"quote", "preference", "goal", "note"},
					"default":     "note",
				},
				"document_id": documentIDProperty,
				"page": map[string]interface{}{
					"type":        "number",
					"description": "Page the quote is from",
				},
				"user_id": userIDProperty,
			},
			Required: []string{"text"},
		},
	}, handlers.SaveMemory)

	// 8. list_library - All documents with ownership
	server.AddTool(mcp.Tool{
		Name:        "list_library",
		Description: "List every document in the library with its ingestion status and whether the caller may delete it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": userIDProperty,
			},
		},
	}, handlers.ListLibrary)

	// 9. delete_document - Owner-checked removal
	server.AddTool(mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document with its passages, jobs, and memories. Only the owner may delete; documents without an owner can be deleted by anyone.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Document to delete",
				},
				"user_id": userIDProperty,
			},
			Required: []string{"document_id"},
		},
	}, handlers.DeleteDocument)

	return handlers
}
