// ABOUTME: Job queue that hands ingestion work from uploads to workers
// ABOUTME: In-process channel by default, Redis list for multi-process workers
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/bookbuddy/internal/config"
	"github.com/harper/bookbuddy/internal/models"
)

// ErrClosed is returned by Dequeue once the queue has been closed and drained
var ErrClosed = errors.New("queue closed")

// Message is one unit of ingestion work
type Message struct {
	JobID      string          `json:"job_id"`
	DocumentID string          `json:"document_id"`
	StorageKey string          `json:"storage_key"`
	FileType   models.FileType `json:"file_type"`
}

// Validate checks that a message names a job, a document, and a blob
func (m Message) Validate() error {
	if m.JobID == "" || m.DocumentID == "" || m.StorageKey == "" {
		return fmt.Errorf("incomplete ingestion message: %+v", m)
	}
	if !m.FileType.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, m.FileType)
	}
	return nil
}

// Queue delivers each message to one worker
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks until a message arrives, the context ends, or the queue closes
	Dequeue(ctx context.Context) (Message, error)
	Close() error
}

// Open builds the backend named by cfg.QueueBackend
func Open(cfg *config.Config) (Queue, error) {
	switch cfg.QueueBackend {
	case "", "memory":
		return NewMemory(DefaultMemoryCapacity), nil
	case "redis":
		return NewRedisFromURL(cfg.RedisURL, cfg.QueueName)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}
