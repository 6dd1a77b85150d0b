// ABOUTME: Ingestion pipeline: fetch, parse, chunk, embed, and persist one document
// ABOUTME: Progress is monotonic; any failure lands on the job as its error message
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harper/bookbuddy/internal/blob"
	"github.com/harper/bookbuddy/internal/chunker"
	"github.com/harper/bookbuddy/internal/llm"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/parser"
	"github.com/harper/bookbuddy/internal/queue"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
	"golang.org/x/time/rate"
)

// Progress checkpoints
const (
	ProgressFetched = 10
	ProgressParsed  = 30
	ProgressChunked = 50
)

const (
	DefaultBatchSize  = 100
	DefaultBatchDelay = 100 * time.Millisecond
)

// ErrAlreadyClaimed is returned when another worker moved the job out of pending first
var ErrAlreadyClaimed = errors.New("job already claimed")

// Store is the slice of the record store the pipeline writes to
type Store interface {
	StartJob(ctx context.Context, id string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	SetJobTotalChunks(ctx context.Context, id string, total int) error
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id, message string) error
	ApplyDerivedMetadata(ctx context.Context, id string, meta models.DerivedMetadata) error
	InsertChunk(ctx context.Context, chunk *models.Chunk) error
}

// Pipeline processes ingestion messages
type Pipeline struct {
	store      Store
	blobs      blob.Store
	embedder   llm.Embedder
	parser     *parser.Parser
	chunker    *chunker.Chunker
	batchSize  int
	batchDelay time.Duration
	log        logger.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

func WithParser(p *parser.Parser) Option {
	return func(pl *Pipeline) { pl.parser = p }
}

func WithChunker(c *chunker.Chunker) Option {
	return func(pl *Pipeline) { pl.chunker = c }
}

// WithBatchSize sets how many chunks are embedded per provider round
func WithBatchSize(n int) Option {
	return func(pl *Pipeline) {
		if n > 0 {
			pl.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between embedding batches
func WithBatchDelay(d time.Duration) Option {
	return func(pl *Pipeline) {
		if d >= 0 {
			pl.batchDelay = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(pl *Pipeline) { pl.log = l }
}

// NewPipeline creates a pipeline with default parser and chunker settings
func NewPipeline(store Store, blobs blob.Store, embedder llm.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		blobs:      blobs,
		embedder:   embedder,
		parser:     parser.New(),
		chunker:    chunker.New(),
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
		log:        logger.Component("ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run claims the job and processes it. A job another worker already claimed
// returns ErrAlreadyClaimed without touching it.
func (p *Pipeline) Run(ctx context.Context, msg queue.Message) error {
	log := p.log.With("job_id", msg.JobID, "document_id", msg.DocumentID)

	if err := p.store.StartJob(ctx, msg.JobID); err != nil {
		if errors.Is(err, sqlite.ErrInvalidTransition) {
			log.Warn("skipping job not in pending state", "error", err)
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to start job %s: %w", msg.JobID, err)
	}

	start := time.Now()
	log.Info("processing ingestion job", "file_type", msg.FileType)

	total, err := p.process(ctx, msg, log)
	if err != nil {
		log.Error("ingestion job failed", "error", err)
		// Record the failure even if the caller's context is already done
		if ferr := p.store.FailJob(context.WithoutCancel(ctx), msg.JobID, err.Error()); ferr != nil {
			log.Error("failed to record job failure", "error", ferr)
		}
		return err
	}

	log.Info("ingestion job completed", "chunks", total, "duration", time.Since(start))
	return nil
}

func (p *Pipeline) process(ctx context.Context, msg queue.Message, log logger.Logger) (int, error) {
	// Step 1: fetch
	data, err := p.blobs.Get(ctx, msg.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", msg.StorageKey, err)
	}
	if err := p.store.UpdateJobProgress(ctx, msg.JobID, ProgressFetched); err != nil {
		return 0, err
	}

	// Step 2: parse
	parsed, err := p.parser.Parse(data, msg.FileType)
	if err != nil {
		return 0, err
	}
	if err := p.store.UpdateJobProgress(ctx, msg.JobID, ProgressParsed); err != nil {
		return 0, err
	}
	log.Debug("parsed document", "pages", len(parsed.Pages), "title", parsed.Metadata.Title)

	// Step 3: fill derived metadata where the upload left it empty
	meta := models.DerivedMetadata{
		Title:      parsed.Metadata.Title,
		Author:     parsed.Metadata.Author,
		Language:   parsed.Metadata.Language,
		TotalPages: parsed.Metadata.TotalPages,
		Chapters:   parsed.ChapterRefs(),
	}
	if err := p.store.ApplyDerivedMetadata(ctx, msg.DocumentID, meta); err != nil {
		return 0, err
	}

	// Step 4: chunk
	chunks := p.chunker.Chunk(parsed.Pages)
	for i := range chunks {
		chunks[i].DocumentID = msg.DocumentID
	}
	if err := p.store.UpdateJobProgress(ctx, msg.JobID, ProgressChunked); err != nil {
		return 0, err
	}
	if err := p.store.SetJobTotalChunks(ctx, msg.JobID, len(chunks)); err != nil {
		return 0, err
	}
	log.Debug("chunked document", "chunks", len(chunks))

	// Steps 5 and 6: embed and persist batch by batch
	if err := p.embedAndPersist(ctx, msg.JobID, chunks, log); err != nil {
		return 0, err
	}

	// Step 7
	if err := p.store.CompleteJob(ctx, msg.JobID); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embedAndPersist embeds chunks in batches and writes each batch before the
// next is requested, so an embedding failure keeps earlier batches stored
func (p *Pipeline) embedAndPersist(ctx context.Context, jobID string, chunks []models.Chunk, log logger.Logger) error {
	total := len(chunks)
	if total == 0 {
		return nil
	}

	limit := rate.Inf
	if p.batchDelay > 0 {
		limit = rate.Every(p.batchDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var embedded, persisted int
	lastProgress := ProgressChunked
	report := func() error {
		progress := embedProgress(embedded, persisted, total)
		if progress <= lastProgress {
			return nil
		}
		lastProgress = progress
		return p.store.UpdateJobProgress(ctx, jobID, progress)
	}

	for start := 0; start < total; start += p.batchSize {
		end := min(start+p.batchSize, total)
		batch := chunks[start:end]

		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
		}
		embedded += len(batch)
		if err := report(); err != nil {
			return err
		}
		log.Debug("embedded batch", "from", start, "to", end-1)

		for i := range batch {
			batch[i].Embedding = vectors[i]
			if err := p.store.InsertChunk(ctx, &batch[i]); err != nil {
				return err
			}
			persisted++
			if err := report(); err != nil {
				return err
			}
		}
	}
	return nil
}

// embedProgress maps the embed and persist phase onto 50..100
func embedProgress(embedded, persisted, total int) int {
	if total <= 0 {
		return 100
	}
	return ProgressChunked + (100-ProgressChunked)*(embedded+persisted)/(2*total)
}
