// ABOUTME: Library service: validated uploads, job status, listing, and owner-checked deletion
// ABOUTME: An upload stores the blob, creates the document and a pending job, then enqueues it
package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/harper/bookbuddy/internal/blob"
	"github.com/harper/bookbuddy/internal/logger"
	"github.com/harper/bookbuddy/internal/models"
	"github.com/harper/bookbuddy/internal/queue"
	"github.com/harper/bookbuddy/internal/storage/sqlite"
)

// DefaultMaxUploadBytes caps a single upload
const DefaultMaxUploadBytes = 100 * 1024 * 1024

var (
	// ErrUnsupportedType is returned for files that are not PDF, EPUB, or plain text
	ErrUnsupportedType = errors.New("unsupported file type: only PDF, EPUB, and TXT are accepted")
	// ErrTooLarge is returned when an upload exceeds the size cap
	ErrTooLarge = errors.New("file exceeds the upload size limit")
	// ErrEmptyFile is returned for zero-byte uploads
	ErrEmptyFile = errors.New("file is empty")
	// ErrForbidden is returned when a caller deletes a document they do not own
	ErrForbidden = errors.New("only the owner can delete this document")
)

// sniffed MIME types accepted per declared file type
var acceptedMIME = map[models.FileType][]string{
	models.FileTypePDF:  {"application/pdf"},
	models.FileTypeEPUB: {"application/epub+zip", "application/zip"},
	models.FileTypeTXT:  {"text/plain"},
}

// Store is the persistence the library needs
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CreateJob(ctx context.Context, job *models.IngestionJob) error
	GetJob(ctx context.Context, id string) (*models.IngestionJob, error)
	LatestJobForDocument(ctx context.Context, documentID string) (*models.IngestionJob, error)
	FailJob(ctx context.Context, id, message string) error
}

// Service manages the document library
type Service struct {
	store    Store
	blobs    blob.Store
	queue    queue.Queue
	maxBytes int64
	now      func() time.Time
	log      logger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithMaxUploadBytes overrides the upload size cap
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a library service
func NewService(store Store, blobs blob.Store, q queue.Queue, opts ...Option) *Service {
	s := &Service{
		store:    store,
		blobs:    blobs,
		queue:    q,
		maxBytes: DefaultMaxUploadBytes,
		now:      time.Now,
		log:      logger.Component("library"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadRequest is a document submitted for ingestion
type UploadRequest struct {
	Filename string
	Data     []byte
	Title    string
	Author   string
	Language string
	OwnerID  string
}

// UploadResult names the created document and its ingestion job
type UploadResult struct {
	Document *models.Document
	JobID    string
}

// Upload validates and stores a file, then queues it for ingestion
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	filename := filepath.Base(strings.TrimSpace(req.Filename))
	fileType, err := s.validate(filename, req.Data)
	if err != nil {
		return nil, err
	}

	owner := req.OwnerID
	if owner == "" {
		owner = "anonymous"
	}
	key := fmt.Sprintf("%s/%d-%s", owner, s.now().UnixMilli(), filename)
	key, err = s.blobs.Put(ctx, req.Data, key)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	doc := &models.Document{
		Title:      title,
		Author:     strings.TrimSpace(req.Author),
		Language:   strings.TrimSpace(req.Language),
		FileType:   fileType,
		FileSize:   int64(len(req.Data)),
		StorageKey: key,
		OwnerID:    req.OwnerID,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	job := &models.IngestionJob{DocumentID: doc.ID}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	log := s.log.With("document_id", doc.ID, "job_id", job.ID)
	msg := queue.Message{JobID: job.ID, DocumentID: doc.ID, StorageKey: key, FileType: fileType}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		log.Error("failed to enqueue ingestion", "error", err)
		if ferr := s.store.FailJob(context.WithoutCancel(ctx), job.ID, "failed to enqueue: "+err.Error()); ferr != nil {
			log.Error("failed to mark job failed", "error", ferr)
		}
		return nil, fmt.Errorf("failed to enqueue ingestion: %w", err)
	}

	log.Info("queued document", "file_type", fileType, "bytes", doc.FileSize)
	return &UploadResult{Document: doc, JobID: job.ID}, nil
}

// validate checks the size cap, the extension, and that the sniffed content agrees with it
func (s *Service) validate(filename string, data []byte) (models.FileType, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), s.maxBytes)
	}

	fileType, err := models.ParseFileType(filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
	}

	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, accepted := range acceptedMIME[fileType] {
			if m.Is(accepted) {
				return fileType, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s content detected as %s", ErrUnsupportedType, fileType, detected.String())
}

// Status returns the polling view of an ingestion job
func (s *Service) Status(ctx context.Context, jobID string) (*models.JobStatusReport, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	report := job.Report()
	return &report, nil
}

// Entry is a document as one caller sees it in the library
type Entry struct {
	models.Document
	// IsOwner is true for the caller's own documents and for orphans
	IsOwner bool                    `json:"is_owner"`
	Job     *models.JobStatusReport `json:"job,omitempty"`
}

// List returns the documents an owner uploaded
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.store.ListDocumentsByOwner(ctx, ownerID)
}

// ListAll returns every document with ownership and latest ingestion state for callerID
func (s *Service) ListAll(ctx context.Context, callerID string) ([]Entry, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entry := Entry{Document: doc, IsOwner: doc.CanDelete(callerID)}
		job, err := s.store.LatestJobForDocument(ctx, doc.ID)
		switch {
		case err == nil:
			report := job.Report()
			entry.Job = &report
		case !errors.Is(err, sqlite.ErrNotFound):
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Get returns one document
func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Delete removes a document the caller owns (or an orphan) with its chunks,
// jobs, and memories. Blob removal is best effort.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.CanDelete(callerID) {
		return ErrForbidden
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.log.Warn("failed to delete blob", "document_id", id, "key", doc.StorageKey, "error", err)
	}
	s.log.Info("deleted document", "document_id", id)
	return nil
}
