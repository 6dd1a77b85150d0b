// ABOUTME: Document storage operations for SQLite
// ABOUTME: Create, read, list, metadata fill-in, and cascading delete of uploaded documents
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harper/bookbuddy/internal/models"
)

// DocumentStore handles document persistence
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, title, author, language, file_type, file_size, storage_key,
	total_pages, chapters, owner_id, created_at`

// CreateDocument inserts a document, assigning an ID and timestamp when missing
func (s *DocumentStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if !doc.FileType.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, doc.FileType)
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	chapters, err := marshalChapters(doc.Chapters)
	if err != nil {
		return err
	}
	var totalPages sql.NullInt64
	if doc.TotalPages != nil {
		totalPages = sql.NullInt64{Int64: int64(*doc.TotalPages), Valid: true}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Title, nullString(doc.Author), nullString(doc.Language), string(doc.FileType),
		doc.FileSize, doc.StorageKey, totalPages, chapters, nullString(doc.OwnerID), doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc *models.Document
	err := s.db.Do(ctx, func(ctx context.Context) error {
		row := s.db.conn.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
		d, err := scanDocument(row)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocumentsByOwner returns the owner's documents, newest first
func (s *DocumentStore) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.listDocuments(ctx, `WHERE owner_id = ?`, ownerID)
}

// ListDocuments returns every document, newest first
func (s *DocumentStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.listDocuments(ctx, "")
}

func (s *DocumentStore) listDocuments(ctx context.Context, where string, args ...any) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.Do(ctx, func(ctx context.Context) error {
		docs = nil
		rows, err := s.db.conn.QueryContext(ctx,
			`SELECT `+documentColumns+` FROM documents `+where+` ORDER BY created_at DESC, rowid DESC`, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			doc, err := scanDocument(rows)
			if err != nil {
				return err
			}
			docs = append(docs, *doc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ApplyDerivedMetadata fills title, author, and language only where they are
// empty, and always records page count and chapter table
func (s *DocumentStore) ApplyDerivedMetadata(ctx context.Context, id string, meta models.DerivedMetadata) error {
	chapters, err := marshalChapters(meta.Chapters)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(ctx, `
		UPDATE documents SET
			title = COALESCE(NULLIF(title, ''), ?),
			author = COALESCE(NULLIF(author, ''), ?),
			language = COALESCE(NULLIF(language, ''), ?),
			total_pages = ?,
			chapters = ?
		WHERE id = ?
	`, meta.Title, nullString(meta.Author), nullString(meta.Language), meta.TotalPages, chapters, id)
	if err != nil {
		return fmt.Errorf("failed to update document metadata: %w", err)
	}
	return requireAffected(res, "document", id)
}

// DeleteDocument removes a document; chunks, jobs, and memories cascade
func (s *DocumentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireAffected(res, "document", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc        models.Document
		author     sql.NullString
		language   sql.NullString
		fileType   string
		totalPages sql.NullInt64
		chapters   sql.NullString
		ownerID    sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Title, &author, &language, &fileType, &doc.FileSize,
		&doc.StorageKey, &totalPages, &chapters, &ownerID, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}

	doc.Author = author.String
	doc.Language = language.String
	doc.FileType = models.FileType(fileType)
	doc.OwnerID = ownerID.String
	if totalPages.Valid {
		n := int(totalPages.Int64)
		doc.TotalPages = &n
	}
	if chapters.Valid && chapters.String != "" {
		if err := json.Unmarshal([]byte(chapters.String), &doc.Chapters); err != nil {
			return nil, fmt.Errorf("failed to decode chapters: %w", err)
		}
	}
	return &doc, nil
}

func marshalChapters(chapters []models.ChapterRef) (sql.NullString, error) {
	if chapters == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(chapters)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode chapters: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// requireAffected maps a zero-row update or delete to ErrNotFound
func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
