// ABOUTME: Builds the service graph shared by CLI commands from configuration
// ABOUTME: Model clients are only created for commands that embed or generate
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/bookbuddy/internal/blob"
	"github.com/harper/bookbuddy/internal/chat"
	"github.com/harper/bookbuddy/internal/chunker"
	"github.com/harper/bookbuddy/internal/config"
	"github.com/harper/bookbuddy/internal/ingest"
	"github.com/harper/bookbuddy/internal/library"
	"github.com/harper/bookbuddy/internal/llm"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/parser"
	"github.com/harper/bookbuddy/internal/queue"
	"github.com/harper/bookbuddy/internal/rag"
	"github.com/harper/bookbuddy/internal/search"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
	"github.com/joho/godotenv"
)

// app holds the open resources for one command invocation
type app struct {
	cfg     *config.Config
	store   *sqlite.Storage
	blobs   blob.Store
	queue   queue.Queue
	library *library.Service
	log     logger.Logger

	// set when opened with models
	search   *search.Engine
	rag      *rag.Orchestrator
	chat     *chat.Service
	pipeline *ingest.Pipeline
}

// openApp loads configuration and opens storage. withModels also builds the
// embedding and generation client and everything that depends on it.
func openApp(withModels bool) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logger.Init(&logger.Config{Level: level, JSON: cfg.LogJSON})

	a := &app{cfg: cfg, log: logger.Component("cli")}

	a.store, err = sqlite.NewStorage(cfg.DBPath,
		sqlite.WithVectorDimension(cfg.VectorDimension),
		sqlite.WithRetryPolicy(sqlite.RetryPolicy{
			Attempts: cfg.StoreRetryAttempts,
			Base:     cfg.StoreRetryBase,
			Max:      cfg.StoreRetryMax,
		}))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	a.blobs, err = blob.Open(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initializing blob store: %w", err)
	}

	a.queue, err = queue.Open(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initializing queue: %w", err)
	}

	a.library = library.NewService(a.store, a.blobs, a.queue,
		library.WithMaxUploadBytes(cfg.MaxUploadBytes))

	if withModels {
		if err := a.openModels(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openModels() error {
	client, err := llm.NewOpenAIClient(llm.NewClientConfig(a.cfg))
	if err != nil {
		return fmt.Errorf("initializing model client (set OPENAI_API_KEY or OPENAI_BASE_URL): %w", err)
	}

	a.search = search.NewEngine(a.store, client).
		WithDefaults(a.cfg.SearchLimit, a.cfg.SearchMinSimilarity)
	a.rag = rag.New(a.search, client,
		rag.WithMinSimilarity(a.cfg.AnswerMinSimilarity),
		rag.WithHistoryMessages(a.cfg.HistoryMessages))
	a.chat = chat.NewService(a.store, a.rag, nil).WithMemoryLimit(a.cfg.MemoryLimit)
	a.pipeline = ingest.NewPipeline(a.store, a.blobs, client,
		ingest.WithParser(parser.New(parser.WithWordsPerPage(a.cfg.TxtWordsPerPage))),
		ingest.WithChunker(chunker.New(
			chunker.WithWindowSize(a.cfg.ChunkWindowWords),
			chunker.WithOverlapPercent(a.cfg.ChunkOverlapPercent))),
		ingest.WithBatchSize(a.cfg.EmbedBatchSize),
		ingest.WithBatchDelay(a.cfg.EmbedBatchDelay))
	return nil
}

// persona returns the configured default persona unless name overrides it
func (a *app) persona(name string) rag.Persona {
	if name != "" {
		return rag.ParsePersona(name)
	}
	return rag.ParsePersona(a.cfg.DefaultPersona)
}

// drainQueue runs workers until every buffered message is processed. The
// in-process queue dies with the command, so anything queued is ingested now.
func (a *app) drainQueue(ctx context.Context) {
	_ = a.queue.Close()
	ingest.NewScheduler(a.queue, a.pipeline, a.cfg.Workers).Run(ctx)
}

func (a *app) close() {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.blobs != nil {
		errs = append(errs, blob.Close(a.blobs))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("error closing resources", "error", err)
	}
}
