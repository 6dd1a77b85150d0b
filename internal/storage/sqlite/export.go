// ABOUTME: Export of a reader's library, memories, and conversations
// ABOUTME: Supports YAML and Markdown export formats
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version       string               `yaml:"version" json:"version"`
	ExportedAt    string               `yaml:"exported_at" json:"exported_at"`
	Tool          string               `yaml:"tool" json:"tool"`
	OwnerID       string               `yaml:"owner_id,omitempty" json:"owner_id,omitempty"`
	Documents     []ExportDocument     `yaml:"documents,omitempty" json:"documents,omitempty"`
	Memories      []ExportMemory       `yaml:"memories,omitempty" json:"memories,omitempty"`
	Conversations []ExportConversation `yaml:"conversations,omitempty" json:"conversations,omitempty"`
}

// ExportDocument represents a document and its ingestion outcome
type ExportDocument struct {
	ID         string `yaml:"id" json:"id"`
	Title      string `yaml:"title" json:"title"`
	Author     string `yaml:"author,omitempty" json:"author,omitempty"`
	FileType   string `yaml:"file_type" json:"file_type"`
	TotalPages int    `yaml:"total_pages,omitempty" json:"total_pages,omitempty"`
	Chunks     int    `yaml:"chunks" json:"chunks"`
	Status     string `yaml:"status,omitempty" json:"status,omitempty"`
	CreatedAt  string `yaml:"created_at" json:"created_at"`
}

// ExportMemory represents a memory entry for export
type ExportMemory struct {
	Type       string `yaml:"type" json:"type"`
	Text       string `yaml:"text" json:"text"`
	DocumentID string `yaml:"document_id,omitempty" json:"document_id,omitempty"`
	Page       int    `yaml:"page,omitempty" json:"page,omitempty"`
	CreatedAt  string `yaml:"created_at" json:"created_at"`
}

// ExportConversation represents a conversation for export
type ExportConversation struct {
	ID       string          `yaml:"id" json:"id"`
	Messages []ExportMessage `yaml:"messages" json:"messages"`
}

// ExportMessage represents one message for export
type ExportMessage struct {
	Role      string `yaml:"role" json:"role"`
	Content   string `yaml:"content" json:"content"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
}

// Export gathers an owner's documents, memories, and conversations
func (s *Storage) Export(ctx context.Context, ownerID string) (*ExportData, error) {
	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "bookbuddy",
		OwnerID:    ownerID,
	}

	docs, err := s.ListDocumentsByOwner(ctx, ownerID)
	if ownerID == "" {
		docs, err = s.ListDocuments(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	for _, doc := range docs {
		count, err := s.CountChunks(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		exportDoc := ExportDocument{
			ID:        doc.ID,
			Title:     doc.Title,
			Author:    doc.Author,
			FileType:  string(doc.FileType),
			Chunks:    count,
			CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		}
		if doc.TotalPages != nil {
			exportDoc.TotalPages = *doc.TotalPages
		}
		job, err := s.LatestJobForDocument(ctx, doc.ID)
		switch {
		case err == nil:
			exportDoc.Status = string(job.Status)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		data.Documents = append(data.Documents, exportDoc)
	}

	if ownerID != "" {
		memories, err := s.ListMemories(ctx, MemoryFilter{OwnerID: ownerID})
		if err != nil {
			return nil, err
		}
		for _, m := range memories {
			data.Memories = append(data.Memories, ExportMemory{
				Type:       string(m.Type),
				Text:       m.Text,
				DocumentID: m.DocumentID,
				Page:       m.Page,
				CreatedAt:  m.CreatedAt.Format(time.RFC3339),
			})
		}
	}

	convs, err := s.ListConversations(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		ec := ExportConversation{ID: conv.ID, Messages: make([]ExportMessage, 0, len(conv.Messages))}
		for _, msg := range conv.Messages {
			ec.Messages = append(ec.Messages, ExportMessage{
				Role:      string(msg.Role),
				Content:   msg.Content,
				Timestamp: msg.CreatedAt.Format(time.RFC3339),
			})
		}
		data.Conversations = append(data.Conversations, ec)
	}

	return data, nil
}

// ExportToYAML exports data to a YAML file
func (s *Storage) ExportToYAML(ctx context.Context, ownerID, outputPath string) error {
	data, err := s.Export(ctx, ownerID)
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}

// ExportToMarkdown exports data to a Markdown file
func (s *Storage) ExportToMarkdown(ctx context.Context, ownerID, outputPath string) error {
	data, err := s.Export(ctx, ownerID)
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	// Write header
	_, _ = fmt.Fprintf(file, "# BookBuddy Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", data.ExportedAt)

	// Write library
	if len(data.Documents) > 0 {
		_, _ = fmt.Fprintln(file, "## Library")
		_, _ = fmt.Fprintln(file)
		_, _ = fmt.Fprintln(file, "| Title | Author | Type | Pages | Chunks | Status |")
		_, _ = fmt.Fprintln(file, "|-------|--------|------|-------|--------|--------|")
		for _, doc := range data.Documents {
			_, _ = fmt.Fprintf(file, "| %s | %s | %s | %d | %d | %s |\n",
				doc.Title, doc.Author, doc.FileType, doc.TotalPages, doc.Chunks, doc.Status)
		}
		_, _ = fmt.Fprintln(file)
	}

	// Write memories
	if len(data.Memories) > 0 {
		_, _ = fmt.Fprintln(file, "## Memories")
		_, _ = fmt.Fprintln(file)
		for _, m := range data.Memories {
			if m.Type == "quote" {
				_, _ = fmt.Fprintf(file, "> %s\n", m.Text)
				if m.Page > 0 {
					_, _ = fmt.Fprintf(file, ">\n> (page %d)\n", m.Page)
				}
				_, _ = fmt.Fprintln(file)
				continue
			}
			_, _ = fmt.Fprintf(file, "- **%s:** %s\n", m.Type, m.Text)
		}
		_, _ = fmt.Fprintln(file)
	}

	// Write conversations
	if len(data.Conversations) > 0 {
		_, _ = fmt.Fprintln(file, "## Conversations")
		_, _ = fmt.Fprintln(file)
		for _, conv := range data.Conversations {
			_, _ = fmt.Fprintf(file, "### %s\n\n", conv.ID)
			for _, msg := range conv.Messages {
				label := "User"
				if msg.Role == "assistant" {
					label = "BookBuddy"
				}
				_, _ = fmt.Fprintf(file, "**%s:** %s\n\n", label, msg.Content)
			}
			_, _ = fmt.Fprintln(file, "---")
			_, _ = fmt.Fprintln(file)
		}
	}

	return nil
}

func createOutput(outputPath string) (*os.File, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}
