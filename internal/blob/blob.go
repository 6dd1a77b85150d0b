// ABOUTME: Blob Store abstraction for uploaded document bytes
// ABOUTME: One backend is chosen at process start; the pipeline sees only the interface
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/bookbuddy/internal/config"
)

// ErrNotFound is returned by Get when no blob exists under the key
var ErrNotFound = errors.New("blob not found")

// Store persists opaque bytes under caller-chosen keys
type Store interface {
	// Put stores data under key and returns the key it was stored under
	Put(ctx context.Context, data []byte, key string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Open builds the backend named by cfg.BlobBackend
func Open(cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "", "local":
		return NewLocal(cfg.BlobDir)
	case "charm":
		return NewCharm(&CharmConfig{
			Host:     cfg.CharmHost,
			DBName:   cfg.CharmDBName,
			AutoSync: cfg.AutoSync,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// Close releases backend resources when the store holds any
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
