// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: The Record Store used by ingestion, search, answering, and the library
package sqlite

import (
	"fmt"
)

// Storage manages all persistent records using SQLite. Entity operations
// are promoted from the embedded stores.
type Storage struct {
	db *DB
	*DocumentStore
	*ChunkStore
	*JobStore
	*ConversationStore
	*MemoryStore
}

// Option configures Storage
type Option func(*storageOptions)

type storageOptions struct {
	retry     RetryPolicy
	dimension int
}

// WithRetryPolicy sets the transient-error retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *storageOptions) { o.retry = p }
}

// WithVectorDimension makes chunk inserts reject vectors of any other size
func WithVectorDimension(d int) Option {
	return func(o *storageOptions) { o.dimension = d }
}

// NewStorage opens (or creates) the database at path
func NewStorage(path string, opts ...Option) (*Storage, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db, opts), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory(opts ...Option) (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStorage(db, opts), nil
}

func newStorage(db *DB, opts []Option) *Storage {
	o := storageOptions{retry: DefaultRetryPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	db.SetRetryPolicy(o.retry)

	return &Storage{
		db:                db,
		DocumentStore:     NewDocumentStore(db),
		ChunkStore:        NewChunkStore(db, o.dimension),
		JobStore:          NewJobStore(db),
		ConversationStore: NewConversationStore(db),
		MemoryStore:       NewMemoryStore(db),
	}
}

// DB returns the underlying database
func (s *Storage) DB() *DB {
	return s.db
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
