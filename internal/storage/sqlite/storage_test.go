// ABOUTME: Tests for the unified Storage wrapper and its record stores
// ABOUTME: Covers documents, chunk search, job transitions, conversations, and memories
package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harper/bookbuddy/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorageInMemory(WithVectorDimension(3))
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestDocument(t *testing.T, store *Storage, doc models.Document) *models.Document {
	t.Helper()
	if doc.FileType == "" {
		doc.FileType = models.FileTypeTXT
	}
	if doc.StorageKey == "" {
		doc.StorageKey = "anonymous/1-test.txt"
	}
	if err := store.CreateDocument(context.Background(), &doc); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	return &doc
}

func insertTestChunk(t *testing.T, store *Storage, docID string, index, page int, vec []float64) {
	t.Helper()
	chunk := &models.Chunk{
		DocumentID: docID,
		ChunkIndex: index,
		Page:       page,
		Text:       "chunk text",
		Embedding:  vec,
	}
	if err := store.InsertChunk(context.Background(), chunk); err != nil {
		t.Fatalf("InsertChunk() error = %v", err)
	}
}

func TestStorageInMemory(t *testing.T) {
	store := newTestStorage(t)

	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("ListDocuments() = %d documents, want 0", len(docs))
	}
	if store.DB() == nil {
		t.Error("DB() should not be nil")
	}
}

func TestDocumentCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := createTestDocument(t, store, models.Document{
		Title:    "Emma",
		FileType: models.FileTypeEPUB,
		FileSize: 1024,
		OwnerID:  "reader-1",
	})
	if doc.ID == "" {
		t.Fatal("CreateDocument() should assign an ID")
	}

	got, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.Title != "Emma" || got.FileType != models.FileTypeEPUB || got.FileSize != 1024 {
		t.Errorf("GetDocument() = %+v", got)
	}
	if got.OwnerID != "reader-1" {
		t.Errorf("OwnerID = %q, want reader-1", got.OwnerID)
	}
	if got.TotalPages != nil {
		t.Errorf("TotalPages = %v, want nil before ingestion", *got.TotalPages)
	}

	if _, err := store.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if err := store.DeleteDocument(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteDocument() error = %v, want ErrNotFound", err)
	}
}

func TestCreateDocumentRejectsUnknownType(t *testing.T) {
	store := newTestStorage(t)

	doc := &models.Document{Title: "x", FileType: "docx", StorageKey: "k"}
	err := store.CreateDocument(context.Background(), doc)
	if !errors.Is(err, models.ErrUnsupportedFileType) {
		t.Errorf("CreateDocument() error = %v, want ErrUnsupportedFileType", err)
	}
}

func TestListDocumentsOrdering(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	createTestDocument(t, store, models.Document{Title: "old", OwnerID: "a", CreatedAt: base})
	createTestDocument(t, store, models.Document{Title: "new", OwnerID: "a", CreatedAt: base.Add(time.Hour)})
	createTestDocument(t, store, models.Document{Title: "other", OwnerID: "b", CreatedAt: base.Add(2 * time.Hour)})
	createTestDocument(t, store, models.Document{Title: "orphan", CreatedAt: base.Add(3 * time.Hour)})

	owned, err := store.ListDocumentsByOwner(ctx, "a")
	if err != nil {
		t.Fatalf("ListDocumentsByOwner() error = %v", err)
	}
	if len(owned) != 2 || owned[0].Title != "new" || owned[1].Title != "old" {
		t.Errorf("ListDocumentsByOwner() = %v, want [new old]", titles(owned))
	}

	all, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(all) != 4 || all[0].Title != "orphan" {
		t.Errorf("ListDocuments() = %v, want orphan first of 4", titles(all))
	}
}

func titles(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func TestApplyDerivedMetadata(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	given := createTestDocument(t, store, models.Document{Title: "My Upload"})
	blank := createTestDocument(t, store, models.Document{Author: "Known Author"})

	meta := models.DerivedMetadata{
		Title:      "Parsed Title",
		Author:     "Parsed Author",
		Language:   "en",
		TotalPages: 3,
		Chapters:   []models.ChapterRef{{Page: 1, Chapter: "One"}, {Page: 2}, {Page: 3}},
	}
	for _, id := range []string{given.ID, blank.ID} {
		if err := store.ApplyDerivedMetadata(ctx, id, meta); err != nil {
			t.Fatalf("ApplyDerivedMetadata() error = %v", err)
		}
	}

	got, err := store.GetDocument(ctx, given.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.Title != "My Upload" {
		t.Errorf("Title = %q, caller-supplied title must win", got.Title)
	}
	if got.Author != "Parsed Author" || got.Language != "en" {
		t.Errorf("Author/Language = %q/%q, want filled", got.Author, got.Language)
	}
	if got.TotalPages == nil || *got.TotalPages != 3 {
		t.Errorf("TotalPages = %v, want 3", got.TotalPages)
	}
	if len(got.Chapters) != 3 || got.Chapters[0].Chapter != "One" {
		t.Errorf("Chapters = %+v", got.Chapters)
	}

	got, err = store.GetDocument(ctx, blank.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.Title != "Parsed Title" {
		t.Errorf("Title = %q, want parsed title for blank document", got.Title)
	}
	if got.Author != "Known Author" {
		t.Errorf("Author = %q, existing author must be kept", got.Author)
	}

	if err := store.ApplyDerivedMetadata(ctx, "missing", meta); !errors.Is(err, ErrNotFound) {
		t.Errorf("ApplyDerivedMetadata(missing) error = %v, want ErrNotFound", err)
	}
}

func TestInsertChunkValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t"})

	err := store.InsertChunk(ctx, &models.Chunk{DocumentID: doc.ID, Text: "x", Embedding: []float64{1, 2}})
	if err == nil {
		t.Error("InsertChunk() should reject a vector of the wrong dimension")
	}

	err = store.InsertChunk(ctx, &models.Chunk{DocumentID: doc.ID, Text: "x"})
	if err == nil {
		t.Error("InsertChunk() should reject a chunk without an embedding")
	}

	insertTestChunk(t, store, doc.ID, 0, 1, []float64{1, 0, 0})
	err = store.InsertChunk(ctx, &models.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Text: "dup", Embedding: []float64{1, 0, 0}})
	if err == nil {
		t.Error("InsertChunk() should reject a reused chunk index")
	}

	err = store.InsertChunk(ctx, &models.Chunk{DocumentID: "missing", ChunkIndex: 0, Text: "x", Embedding: []float64{1, 0, 0}})
	if err == nil {
		t.Error("InsertChunk() should reject a chunk for a missing document")
	}
}

func TestListChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t"})

	insertTestChunk(t, store, doc.ID, 1, 2, []float64{0, 1, 0})
	insertTestChunk(t, store, doc.ID, 0, 0, []float64{1, 0, 0})

	chunks, err := store.ListChunks(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("ListChunks() = %d chunks, want 2", len(chunks))
	}
	if chunks[0].ChunkIndex != 0 || chunks[1].ChunkIndex != 1 {
		t.Errorf("chunks not in index order: %d, %d", chunks[0].ChunkIndex, chunks[1].ChunkIndex)
	}
	if chunks[0].Page != 0 {
		t.Errorf("Page = %d, want 0 for unknown page", chunks[0].Page)
	}
	if chunks[1].Embedding[1] != 1 {
		t.Errorf("Embedding = %v, want round trip", chunks[1].Embedding)
	}

	n, err := store.CountChunks(ctx, doc.ID)
	if err != nil {
		t.Fatalf("CountChunks() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountChunks() = %d, want 2", n)
	}
}

func TestSearchChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	austen := createTestDocument(t, store, models.Document{Title: "Emma", Author: "Jane Austen"})
	tolstoy := createTestDocument(t, store, models.Document{Title: "War and Peace", Author: "Leo Tolstoy"})

	insertTestChunk(t, store, austen.ID, 0, 1, []float64{1, 0, 0})
	insertTestChunk(t, store, austen.ID, 1, 5, []float64{0.9, 0.1, 0})
	insertTestChunk(t, store, austen.ID, 2, 9, []float64{0, 1, 0})
	insertTestChunk(t, store, tolstoy.ID, 0, 3, []float64{0.8, 0.2, 0})

	query := []float64{1, 0, 0}

	t.Run("ordered by similarity", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, ChunkQuery{Vector: query, Limit: 10, MinSimilarity: 0.5})
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("SearchChunks() = %d results, want 3 above threshold", len(results))
		}
		for i := 1; i < len(results); i++ {
			if results[i].VectorSimilarity > results[i-1].VectorSimilarity {
				t.Errorf("results not sorted at %d", i)
			}
		}
		if results[0].DocumentTitle != "Emma" || results[0].Author != "Jane Austen" {
			t.Errorf("top result = %+v", results[0])
		}
		if results[0].Score != results[0].VectorSimilarity {
			t.Errorf("Score = %v, want raw similarity", results[0].Score)
		}
	})

	t.Run("limit", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, ChunkQuery{Vector: query, Limit: 1})
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 1 || results[0].ChunkIndex != 0 {
			t.Errorf("SearchChunks(limit 1) = %+v", results)
		}
	})

	t.Run("zero limit", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, ChunkQuery{Vector: query})
		if err != nil || len(results) != 0 {
			t.Errorf("SearchChunks(limit 0) = %v, %v", results, err)
		}
	})

	t.Run("document filter", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, ChunkQuery{Vector: query, Limit: 10, DocumentID: tolstoy.ID})
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 1 || results[0].DocumentID != tolstoy.ID {
			t.Errorf("document filter returned %+v", results)
		}
	})

	t.Run("author substring is case-insensitive", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, ChunkQuery{Vector: query, Limit: 10, Author: "austen"})
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 3 {
			t.Errorf("author filter returned %d results, want 3", len(results))
		}
		for _, r := range results {
			if r.DocumentID != austen.ID {
				t.Errorf("author filter leaked %s", r.DocumentTitle)
			}
		}
	})

	t.Run("page range", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, ChunkQuery{Vector: query, Limit: 10, MinPage: 3, MaxPage: 5})
		if err != nil {
			t.Fatalf("SearchChunks() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("page filter returned %d results, want 2", len(results))
		}
		for _, r := range results {
			if r.Page < 3 || r.Page > 5 {
				t.Errorf("page %d outside 3..5", r.Page)
			}
		}
	})
}

func TestJobLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t"})

	job := &models.IngestionJob{DocumentID: doc.ID}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if job.Status != models.JobPending || job.Progress != 0 {
		t.Errorf("new job = %s/%d, want pending/0", job.Status, job.Progress)
	}

	// Progress is only accepted while processing
	if err := store.UpdateJobProgress(ctx, job.ID, 10); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("UpdateJobProgress(pending) error = %v, want ErrInvalidTransition", err)
	}

	if err := store.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("StartJob() error = %v", err)
	}
	if err := store.StartJob(ctx, job.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second StartJob() error = %v, want ErrInvalidTransition", err)
	}

	for _, p := range []int{10, 50, 30} {
		if err := store.UpdateJobProgress(ctx, job.ID, p); err != nil {
			t.Fatalf("UpdateJobProgress(%d) error = %v", p, err)
		}
	}
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Progress != 50 {
		t.Errorf("Progress = %d, want 50 (never decreases)", got.Progress)
	}

	if err := store.UpdateJobProgress(ctx, job.ID, 250); err != nil {
		t.Fatalf("UpdateJobProgress(250) error = %v", err)
	}
	got, _ = store.GetJob(ctx, job.ID)
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want clamp to 100", got.Progress)
	}

	if err := store.SetJobTotalChunks(ctx, job.ID, 6); err != nil {
		t.Fatalf("SetJobTotalChunks() error = %v", err)
	}
	if err := store.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("CompleteJob() error = %v", err)
	}

	got, _ = store.GetJob(ctx, job.ID)
	if got.Status != models.JobCompleted || got.Progress != 100 {
		t.Errorf("completed job = %s/%d", got.Status, got.Progress)
	}
	if got.TotalChunks == nil || *got.TotalChunks != 6 {
		t.Errorf("TotalChunks = %v, want 6", got.TotalChunks)
	}

	// Terminal states never change
	if err := store.FailJob(ctx, job.ID, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FailJob(completed) error = %v, want ErrInvalidTransition", err)
	}
	if err := store.StartJob(ctx, job.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("StartJob(completed) error = %v, want ErrInvalidTransition", err)
	}
}

func TestFailJob(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t"})

	job := &models.IngestionJob{DocumentID: doc.ID}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.FailJob(ctx, job.ID, "queue unavailable"); err != nil {
		t.Fatalf("FailJob(pending) error = %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != models.JobFailed || got.ErrorMessage != "queue unavailable" {
		t.Errorf("failed job = %s/%q", got.Status, got.ErrorMessage)
	}
	if err := store.CompleteJob(ctx, job.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("CompleteJob(failed) error = %v, want ErrInvalidTransition", err)
	}
}

func TestJobMissing(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.StartJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("StartJob(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.LatestJobForDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestJobForDocument(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStartJobRace(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t"})

	job := &models.IngestionJob{DocumentID: doc.ID}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	const workers = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.StartJob(ctx, job.ID)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("StartJob() error = %v, want ErrInvalidTransition", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d workers started the job, want exactly 1", wins)
	}
}

func TestLatestJobForDocument(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t"})

	first := &models.IngestionJob{DocumentID: doc.ID}
	second := &models.IngestionJob{DocumentID: doc.ID}
	if err := store.CreateJob(ctx, first); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, second); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	got, err := store.LatestJobForDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("LatestJobForDocument() error = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("LatestJobForDocument() = %s, want %s", got.ID, second.ID)
	}
}

func TestConversationTurns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.GetConversation(ctx, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConversation(missing) error = %v, want ErrNotFound", err)
	}

	confidence := 0.8
	citations := []models.Citation{{DocumentID: "d1", DocumentTitle: "Emma", Page: 4, Excerpt: "It is a truth"}}

	turns := [][2]string{{"who is Emma?", "A matchmaker."}, {"and Knightley?", "Her neighbour."}}
	for _, turn := range turns {
		err := store.AppendTurn(ctx, "conv-1", "reader-1",
			models.Message{Role: models.RoleUser, Content: turn[0]},
			models.Message{Role: models.RoleAssistant, Content: turn[1], Citations: citations, Confidence: &confidence},
		)
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	conv, err := store.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv.OwnerID != "reader-1" {
		t.Errorf("OwnerID = %q, want reader-1", conv.OwnerID)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("Messages = %d, want 4", len(conv.Messages))
	}

	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, msg := range conv.Messages {
		if msg.Role != wantRoles[i] {
			t.Errorf("Messages[%d].Role = %s, want %s", i, msg.Role, wantRoles[i])
		}
	}
	if conv.Messages[2].Content != "and Knightley?" {
		t.Errorf("Messages[2].Content = %q", conv.Messages[2].Content)
	}

	reply := conv.Messages[1]
	if reply.Confidence == nil || *reply.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", reply.Confidence)
	}
	if len(reply.Citations) != 1 || reply.Citations[0].Page != 4 {
		t.Errorf("Citations = %+v", reply.Citations)
	}
	if conv.Messages[0].Confidence != nil || len(conv.Messages[0].Citations) != 0 {
		t.Error("user messages should carry no citations or confidence")
	}
}

func TestAppendTurnRejectsBadRoles(t *testing.T) {
	store := newTestStorage(t)

	err := store.AppendTurn(context.Background(), "conv-1", "",
		models.Message{Role: models.RoleAssistant, Content: "a"},
		models.Message{Role: models.RoleUser, Content: "b"},
	)
	if err == nil {
		t.Fatal("AppendTurn() should reject swapped roles")
	}
	if _, err := store.GetConversation(context.Background(), "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rejected turn must not create a conversation, got %v", err)
	}
}

func TestListConversations(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2"} {
		err := store.AppendTurn(ctx, id, "reader-1",
			models.Message{Role: models.RoleUser, Content: "hi"},
			models.Message{Role: models.RoleAssistant, Content: "hello"},
		)
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}
	err := store.AppendTurn(ctx, "c3", "reader-2",
		models.Message{Role: models.RoleUser, Content: "hi"},
		models.Message{Role: models.RoleAssistant, Content: "hello"},
	)
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	convs, err := store.ListConversations(ctx, "reader-1")
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("ListConversations() = %d, want 2", len(convs))
	}
	for _, c := range convs {
		if len(c.Messages) != 2 {
			t.Errorf("conversation %s has %d messages, want 2", c.ID, len(c.Messages))
		}
	}
}

func TestMemories(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	emma := createTestDocument(t, store, models.Document{Title: "Emma"})
	other := createTestDocument(t, store, models.Document{Title: "Other"})

	entries := []models.UserMemory{
		{OwnerID: "r1", Type: models.MemoryGoal, Text: "finish Emma", CreatedAt: base},
		{OwnerID: "r1", DocumentID: emma.ID, Type: models.MemoryQuote, Text: "Silly things do cease to be silly", Page: 12, CreatedAt: base.Add(time.Minute)},
		{OwnerID: "r1", DocumentID: other.ID, Type: models.MemoryPreference, Text: "short answers", CreatedAt: base.Add(2 * time.Minute)},
		{OwnerID: "r2", Type: models.MemoryNote, Text: "someone else", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range entries {
		if err := store.SaveMemory(ctx, &entries[i]); err != nil {
			t.Fatalf("SaveMemory() error = %v", err)
		}
	}

	all, err := store.ListMemories(ctx, MemoryFilter{OwnerID: "r1"})
	if err != nil {
		t.Fatalf("ListMemories() error = %v", err)
	}
	if len(all) != 3 || all[0].Text != "short answers" {
		t.Errorf("ListMemories() = %+v, want 3 newest first", all)
	}

	scoped, err := store.ListMemories(ctx, MemoryFilter{OwnerID: "r1", DocumentID: emma.ID, IncludeGlobal: true})
	if err != nil {
		t.Fatalf("ListMemories() error = %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("document plus global = %d memories, want 2", len(scoped))
	}

	quotes, err := store.ListMemories(ctx, MemoryFilter{OwnerID: "r1", Type: models.MemoryQuote})
	if err != nil {
		t.Fatalf("ListMemories() error = %v", err)
	}
	if len(quotes) != 1 || quotes[0].Page != 12 || quotes[0].DocumentID != emma.ID {
		t.Errorf("quotes = %+v", quotes)
	}

	limited, err := store.ListMemories(ctx, MemoryFilter{OwnerID: "r1", Limit: 1})
	if err != nil {
		t.Fatalf("ListMemories() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}

	if _, err := store.ListMemories(ctx, MemoryFilter{}); err == nil {
		t.Error("ListMemories() without owner should fail")
	}
}

func TestSaveMemoryValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name string
		mem  models.UserMemory
	}{
		{"no owner", models.UserMemory{Type: models.MemoryNote, Text: "x"}},
		{"bad type", models.UserMemory{OwnerID: "r", Type: "highlight", Text: "x"}},
		{"blank text", models.UserMemory{OwnerID: "r", Type: models.MemoryNote, Text: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.SaveMemory(ctx, &tt.mem); err == nil {
				t.Error("SaveMemory() should fail")
			}
		})
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, models.Document{Title: "t", OwnerID: "r1"})

	insertTestChunk(t, store, doc.ID, 0, 1, []float64{1, 0, 0})
	job := &models.IngestionJob{DocumentID: doc.ID}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	mem := &models.UserMemory{OwnerID: "r1", DocumentID: doc.ID, Type: models.MemoryQuote, Text: "q"}
	if err := store.SaveMemory(ctx, mem); err != nil {
		t.Fatalf("SaveMemory() error = %v", err)
	}

	if err := store.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	if n, _ := store.CountChunks(ctx, doc.ID); n != 0 {
		t.Errorf("CountChunks() = %d after delete, want 0", n)
	}
	if _, err := store.GetJob(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob() error = %v, want ErrNotFound after cascade", err)
	}
	mems, err := store.ListMemories(ctx, MemoryFilter{OwnerID: "r1"})
	if err != nil {
		t.Fatalf("ListMemories() error = %v", err)
	}
	if len(mems) != 0 {
		t.Errorf("ListMemories() = %d after delete, want 0", len(mems))
	}
}
