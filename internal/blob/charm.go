// ABOUTME: Charm KV Blob Store for cloud-synced document storage
// ABOUTME: Uses SSH key auth from the local charm identity and syncs after writes
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	badger "github.com/dgraph-io/badger/v3"
)

// charmPrefix namespaces blob keys inside the KV database
const charmPrefix = "blob:"

// CharmConfig holds charm client configuration
type CharmConfig struct {
	Host     string
	DBName   string
	AutoSync bool
}

// kvStore is the subset of *kv.KV the blob store needs
type kvStore interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	Close() error
}

// Charm stores blobs in a charm KV database
type Charm struct {
	kv       kvStore
	autoSync bool
	mu       sync.Mutex
}

// NewCharm opens the KV database named in cfg
func NewCharm(cfg *CharmConfig) (*Charm, error) {
	// CHARM_HOST must be set before opening KV
	if cfg.Host != "" {
		if err := os.Setenv("CHARM_HOST", cfg.Host); err != nil {
			return nil, fmt.Errorf("failed to set CHARM_HOST: %w", err)
		}
	}

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := newCharmWithKV(db, cfg.AutoSync)
	// Pull remote data on startup
	if cfg.AutoSync {
		_ = db.Sync()
	}
	return c, nil
}

func newCharmWithKV(store kvStore, autoSync bool) *Charm {
	return &Charm{kv: store, autoSync: autoSync}
}

// syncIfEnabled syncs to cloud after writes
func (c *Charm) syncIfEnabled() {
	if c.autoSync {
		_ = c.kv.Sync()
	}
}

func (c *Charm) Put(_ context.Context, data []byte, key string) (string, error) {
	if key == "" {
		return "", errors.New("blob key is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set([]byte(charmPrefix+key), data); err != nil {
		return "", fmt.Errorf("failed to set key %s: %w", key, err)
	}
	c.syncIfEnabled()
	return key, nil
}

func (c *Charm) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.kv.Get([]byte(charmPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && data == nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return data, nil
}

func (c *Charm) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete([]byte(charmPrefix + key)); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	c.syncIfEnabled()
	return nil
}

// Keys lists stored blob keys in sorted order
func (c *Charm) Keys() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	var keys []string
	for _, k := range raw {
		if key, ok := strings.CutPrefix(string(k), charmPrefix); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Sync pushes local writes and pulls remote ones
func (c *Charm) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Sync()
}

// ID returns the charm account ID of the local SSH identity
func (c *Charm) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// AuthorizedKeys returns the SSH keys linked to the charm account
func (c *Charm) AuthorizedKeys() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.AuthorizedKeys()
}

// Close closes the KV database
func (c *Charm) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv != nil {
		err := c.kv.Close()
		c.kv = nil
		return err
	}
	return nil
}
