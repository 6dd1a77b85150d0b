// ABOUTME: Centralized configuration for the BookBuddy ingestion and answering core
// ABOUTME: Defaults, then an optional YAML file, then environment variables, then validation
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the system
type Config struct {
	// Storage settings
	DBPath      string `yaml:"db_path"`
	BlobBackend string `yaml:"blob_backend"`
	BlobDir     string `yaml:"blob_dir"`
	CharmHost   string `yaml:"charm_host"`
	CharmDBName string `yaml:"charm_db"`
	AutoSync    bool   `yaml:"charm_auto_sync"`

	// Record store retry settings
	StoreRetryAttempts int           `yaml:"store_retry_attempts"`
	StoreRetryBase     time.Duration `yaml:"store_retry_base"`
	StoreRetryMax      time.Duration `yaml:"store_retry_max"`

	// Model provider settings (any OpenAI-compatible endpoint).
	// Fallback embedding models must share the first model's vector space.
	OpenAIKey       string        `yaml:"-"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	ChatModels      []string      `yaml:"chat_models"`
	EmbeddingModels []string      `yaml:"embedding_models"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	VectorDimension int           `yaml:"vector_dimension"`

	// Parsing and chunking
	TxtWordsPerPage     int   `yaml:"txt_words_per_page"`
	ChunkWindowWords    int   `yaml:"chunk_window_words"`
	ChunkOverlapPercent int   `yaml:"chunk_overlap_percent"`
	MaxUploadBytes      int64 `yaml:"max_upload_bytes"`

	// Embedding batches
	EmbedBatchSize   int           `yaml:"embed_batch_size"`
	EmbedBatchDelay  time.Duration `yaml:"embed_batch_delay"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`

	// Retrieval and answering
	SearchLimit         int     `yaml:"search_limit"`
	SearchMinSimilarity float64 `yaml:"search_min_similarity"`
	AnswerTopK          int     `yaml:"answer_top_k"`
	AnswerMinSimilarity float64 `yaml:"answer_min_similarity"`
	DefaultPersona      string  `yaml:"default_persona"`
	HistoryMessages     int     `yaml:"history_messages"`
	MemoryLimit         int     `yaml:"memory_limit"`

	// UserID owns uploads, memories, and conversations made from this process.
	// Empty means documents are orphans that anyone may delete.
	UserID string `yaml:"user_id"`

	// Job queue
	QueueBackend string `yaml:"queue_backend"`
	RedisURL     string `yaml:"redis_url"`
	QueueName    string `yaml:"queue_name"`
	Workers      int    `yaml:"workers"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		DBPath:             filepath.Join(dataDir, "bookbuddy.db"),
		BlobBackend:        "local",
		BlobDir:            filepath.Join(dataDir, "uploads"),
		CharmHost:          "cloud.charm.sh",
		CharmDBName:        "bookbuddy",
		AutoSync:           true,
		StoreRetryAttempts: 3,
		StoreRetryBase:     200 * time.Millisecond,
		StoreRetryMax:      5 * time.Second,

		ChatModels:      []string{"gpt-4o-mini", "gpt-4.1-nano"},
		EmbeddingModels: []string{"text-embedding-3-small"},
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      2 * time.Second,
		VectorDimension: 768,

		TxtWordsPerPage:     500,
		ChunkWindowWords:    400,
		ChunkOverlapPercent: 20,
		MaxUploadBytes:      100 * 1024 * 1024,

		EmbedBatchSize:   100,
		EmbedBatchDelay:  100 * time.Millisecond,
		EmbedConcurrency: 8,

		SearchLimit:         10,
		SearchMinSimilarity: 0.5,
		AnswerTopK:          5,
		AnswerMinSimilarity: 0.3,
		DefaultPersona:      "friend",
		HistoryMessages:     4,
		MemoryLimit:         5,

		QueueBackend: "memory",
		RedisURL:     "redis://localhost:6379/0",
		QueueName:    "bookbuddy:ingestion",
		Workers:      2,

		LogLevel: "info",
	}
}

// DefaultDataDir returns the data directory following the XDG spec
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".local/share/bookbuddy"
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "bookbuddy")
}

// Load reads configuration from BOOKBUDDY_CONFIG (if set) and environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("BOOKBUDDY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// loadFile overlays a YAML file; a missing file is not an error
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DBPath = getEnv("BOOKBUDDY_DB_PATH", c.DBPath)
	c.BlobBackend = getEnv("BOOKBUDDY_BLOB_BACKEND", c.BlobBackend)
	c.BlobDir = getEnv("BOOKBUDDY_BLOB_DIR", c.BlobDir)
	c.CharmHost = getEnv("CHARM_HOST", c.CharmHost)
	c.CharmDBName = getEnv("CHARM_DB", c.CharmDBName)
	c.AutoSync = getEnvBool("CHARM_AUTO_SYNC", c.AutoSync)
	c.StoreRetryAttempts = getEnvInt("BOOKBUDDY_STORE_RETRY_ATTEMPTS", c.StoreRetryAttempts)
	c.StoreRetryBase = getEnvDuration("BOOKBUDDY_STORE_RETRY_BASE", c.StoreRetryBase)
	c.StoreRetryMax = getEnvDuration("BOOKBUDDY_STORE_RETRY_MAX", c.StoreRetryMax)

	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ChatModels = getEnvList("BOOKBUDDY_CHAT_MODELS", c.ChatModels)
	c.EmbeddingModels = getEnvList("BOOKBUDDY_EMBEDDING_MODELS", c.EmbeddingModels)
	c.Timeout = getEnvDuration("OPENAI_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", c.RetryDelay)
	c.VectorDimension = getEnvInt("VECTOR_DIMENSION", c.VectorDimension)

	c.TxtWordsPerPage = getEnvInt("BOOKBUDDY_TXT_WORDS_PER_PAGE", c.TxtWordsPerPage)
	c.ChunkWindowWords = getEnvInt("BOOKBUDDY_CHUNK_WINDOW", c.ChunkWindowWords)
	c.ChunkOverlapPercent = getEnvInt("BOOKBUDDY_CHUNK_OVERLAP", c.ChunkOverlapPercent)
	c.MaxUploadBytes = int64(getEnvInt("BOOKBUDDY_MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))

	c.EmbedBatchSize = getEnvInt("BOOKBUDDY_EMBED_BATCH_SIZE", c.EmbedBatchSize)
	c.EmbedBatchDelay = getEnvDuration("BOOKBUDDY_EMBED_BATCH_DELAY", c.EmbedBatchDelay)
	c.EmbedConcurrency = getEnvInt("BOOKBUDDY_EMBED_CONCURRENCY", c.EmbedConcurrency)

	c.SearchLimit = getEnvInt("BOOKBUDDY_SEARCH_LIMIT", c.SearchLimit)
	c.SearchMinSimilarity = getEnvFloat("BOOKBUDDY_SEARCH_MIN_SIMILARITY", c.SearchMinSimilarity)
	c.AnswerTopK = getEnvInt("BOOKBUDDY_ANSWER_TOP_K", c.AnswerTopK)
	c.AnswerMinSimilarity = getEnvFloat("BOOKBUDDY_ANSWER_MIN_SIMILARITY", c.AnswerMinSimilarity)
	c.DefaultPersona = getEnv("BOOKBUDDY_PERSONA", c.DefaultPersona)
	c.HistoryMessages = getEnvInt("BOOKBUDDY_HISTORY_MESSAGES", c.HistoryMessages)
	c.MemoryLimit = getEnvInt("BOOKBUDDY_MEMORY_LIMIT", c.MemoryLimit)

	c.UserID = getEnv("BOOKBUDDY_USER", c.UserID)

	c.QueueBackend = getEnv("BOOKBUDDY_QUEUE", c.QueueBackend)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.QueueName = getEnv("BOOKBUDDY_QUEUE_NAME", c.QueueName)
	c.Workers = getEnvInt("BOOKBUDDY_WORKERS", c.Workers)

	c.LogLevel = getEnv("BOOKBUDDY_LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvBool("BOOKBUDDY_LOG_JSON", c.LogJSON)
}

func (c *Config) Validate() error {
	if c.SearchMinSimilarity < 0 || c.SearchMinSimilarity > 1 {
		return fmt.Errorf("BOOKBUDDY_SEARCH_MIN_SIMILARITY must be 0-1, got %f", c.SearchMinSimilarity)
	}
	if c.AnswerMinSimilarity < 0 || c.AnswerMinSimilarity > 1 {
		return fmt.Errorf("BOOKBUDDY_ANSWER_MIN_SIMILARITY must be 0-1, got %f", c.AnswerMinSimilarity)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.StoreRetryAttempts < 1 || c.StoreRetryAttempts > 10 {
		return fmt.Errorf("BOOKBUDDY_STORE_RETRY_ATTEMPTS must be 1-10, got %d", c.StoreRetryAttempts)
	}
	if c.ChunkWindowWords <= 0 {
		return fmt.Errorf("BOOKBUDDY_CHUNK_WINDOW must be positive, got %d", c.ChunkWindowWords)
	}
	if c.ChunkOverlapPercent < 0 || c.ChunkOverlapPercent >= 100 {
		return fmt.Errorf("BOOKBUDDY_CHUNK_OVERLAP must be 0-99, got %d", c.ChunkOverlapPercent)
	}
	if c.TxtWordsPerPage <= 0 {
		return fmt.Errorf("BOOKBUDDY_TXT_WORDS_PER_PAGE must be positive, got %d", c.TxtWordsPerPage)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	if c.EmbedBatchSize <= 0 || c.EmbedConcurrency <= 0 {
		return fmt.Errorf("embedding batch size and concurrency must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("BOOKBUDDY_WORKERS must be at least 1, got %d", c.Workers)
	}
	if len(c.ChatModels) == 0 || len(c.EmbeddingModels) == 0 {
		return fmt.Errorf("at least one chat model and one embedding model are required")
	}
	switch c.BlobBackend {
	case "local", "charm":
	default:
		return fmt.Errorf("BOOKBUDDY_BLOB_BACKEND must be local or charm, got %q", c.BlobBackend)
	}
	switch c.QueueBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("BOOKBUDDY_QUEUE must be memory or redis, got %q", c.QueueBackend)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
