// ABOUTME: Tests for the ingestion pipeline against in-memory SQLite and a local blob store
// ABOUTME: Covers the happy path, progress monotonicity, and mid-embedding failure
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/harper/bookbuddy/internal/blob"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/queue"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns deterministic 3-dimensional vectors and can fail on a given call
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	return []float64{float64(len(text)), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if call == f.failOn {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

// recordingStore captures every progress value written
type recordingStore struct {
	*sqlite.Storage
	mu       sync.Mutex
	progress []int
}

func (r *recordingStore) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	r.progress = append(r.progress, progress)
	r.mu.Unlock()
	return r.Storage.UpdateJobProgress(ctx, id, progress)
}

type fixture struct {
	store *recordingStore
	blobs *blob.Local
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.NewStorageInMemory(sqlite.WithVectorDimension(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	return &fixture{store: &recordingStore{Storage: store}, blobs: blobs}
}

// upload stores data and creates the document and pending job the way the library does
func (f *fixture) upload(t *testing.T, title string, ft models.FileType, data []byte) queue.Message {
	t.Helper()
	ctx := context.Background()

	key, err := f.blobs.Put(ctx, data, "anonymous/1-"+title+"."+string(ft))
	require.NoError(t, err)

	doc := &models.Document{Title: title, FileType: ft, FileSize: int64(len(data)), StorageKey: key}
	require.NoError(t, f.store.CreateDocument(ctx, doc))

	job := &models.IngestionJob{DocumentID: doc.ID}
	require.NoError(t, f.store.CreateJob(ctx, job))

	return queue.Message{JobID: job.ID, DocumentID: doc.ID, StorageKey: key, FileType: ft}
}

// words returns n distinct whitespace-separated words
func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func newTestPipeline(f *fixture, emb *fakeEmbedder, opts ...Option) *Pipeline {
	opts = append([]Option{WithBatchDelay(0), WithLogger(logger.Discard())}, opts...)
	return NewPipeline(f.store, f.blobs, emb, opts...)
}

func TestPipelineTextDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "notes", models.FileTypeTXT, []byte(words(1500)))

	err := newTestPipeline(f, &fakeEmbedder{}).Run(ctx, msg)
	require.NoError(t, err)

	job, err := f.store.GetJob(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.TotalChunks)
	assert.Equal(t, 6, *job.TotalChunks, "three 500-word pages at window 400, overlap 80")
	assert.Empty(t, job.ErrorMessage)

	chunks, err := f.store.ListChunks(ctx, msg.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 6)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex, "indices are dense")
		assert.LessOrEqual(t, len(strings.Fields(c.Text)), 400)
		assert.Len(t, c.Embedding, 3)
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[5].Page)
	assert.Len(t, strings.Fields(chunks[1].Text), 180)

	doc, err := f.store.GetDocument(ctx, msg.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "notes", doc.Title, "upload title is kept")
	require.NotNil(t, doc.TotalPages)
	assert.Equal(t, 3, *doc.TotalPages)
	assert.Len(t, doc.Chapters, 3)
}

func TestPipelineProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "notes", models.FileTypeTXT, []byte(words(1500)))

	err := newTestPipeline(f, &fakeEmbedder{}, WithBatchSize(2)).Run(ctx, msg)
	require.NoError(t, err)

	got := f.store.progress
	require.NotEmpty(t, got)
	assert.Equal(t, []int{10, 30, 50}, got[:3], "fetch, parse, chunk checkpoints")
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1], "progress must strictly advance between writes")
	}
	assert.Equal(t, 100, got[len(got)-1])
}

func TestPipelineEmbeddingFailureKeepsEarlierBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "notes", models.FileTypeTXT, []byte(words(1500)))

	// Six chunks in three batches of two; the second batch fails
	err := newTestPipeline(f, &fakeEmbedder{failOn: 2}, WithBatchSize(2)).Run(ctx, msg)
	require.Error(t, err)

	job, err := f.store.GetJob(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "embedding provider unavailable")

	n, err := f.store.CountChunks(ctx, msg.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the first batch stays persisted")
}

func TestPipelineMissingBlob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "notes", models.FileTypeTXT, []byte("a few words"))
	require.NoError(t, f.blobs.Delete(ctx, msg.StorageKey))

	err := newTestPipeline(f, &fakeEmbedder{}).Run(ctx, msg)
	require.ErrorIs(t, err, blob.ErrNotFound)

	job, err := f.store.GetJob(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "failed to fetch")
}

func TestPipelineCorruptDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "broken", models.FileTypeEPUB, []byte("definitely not a zip archive"))

	err := newTestPipeline(f, &fakeEmbedder{}).Run(ctx, msg)
	require.Error(t, err)

	job, err := f.store.GetJob(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "failed to parse EPUB")
	assert.Equal(t, 10, job.Progress, "progress stops at the last checkpoint reached")
}

func TestPipelineEmptyDocumentCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "blank", models.FileTypeTXT, []byte("   \n\t  "))

	emb := &fakeEmbedder{}
	require.NoError(t, newTestPipeline(f, emb).Run(ctx, msg))

	job, err := f.store.GetJob(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	require.NotNil(t, job.TotalChunks)
	assert.Equal(t, 0, *job.TotalChunks)
	assert.Equal(t, 0, emb.calls, "nothing to embed")
}

func TestPipelineSkipsClaimedJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	msg := f.upload(t, "notes", models.FileTypeTXT, []byte(words(10)))
	require.NoError(t, f.store.StartJob(ctx, msg.JobID))

	err := newTestPipeline(f, &fakeEmbedder{}).Run(ctx, msg)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	job, err := f.store.GetJob(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, job.Status, "the losing worker leaves the job alone")
	assert.Empty(t, f.store.progress)
}

func TestEmbedProgress(t *testing.T) {
	tests := []struct {
		embedded, persisted, total int
		want                       int
	}{
		{0, 0, 10, 50},
		{10, 0, 10, 75},
		{10, 5, 10, 87},
		{10, 10, 10, 100},
		{0, 0, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, embedProgress(tt.embedded, tt.persisted, tt.total),
			"embedProgress(%d, %d, %d)", tt.embedded, tt.persisted, tt.total)
	}
}
