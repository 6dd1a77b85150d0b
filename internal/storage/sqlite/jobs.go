// ABOUTME: Ingestion job storage with state transitions enforced in SQL
// ABOUTME: Conditional updates make concurrent workers race safely on the same job
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harper/bookbuddy/internal/models"
)

// JobStore handles ingestion job persistence
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, document_id, status, progress, total_chunks, error_message, created_at, updated_at`

// CreateJob inserts a pending job with zero progress
func (s *JobStore) CreateJob(ctx context.Context, job *models.IngestionJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.Status = models.JobPending
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO ingestion_jobs (id, document_id, status, progress, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, job.ID, job.DocumentID, string(job.Status), now, now)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *JobStore) GetJob(ctx context.Context, id string) (*models.IngestionJob, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = ?`, id)
}

// LatestJobForDocument returns the most recently created job for a document
func (s *JobStore) LatestJobForDocument(ctx context.Context, documentID string) (*models.IngestionJob, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs
		WHERE document_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, documentID)
}

func (s *JobStore) getJob(ctx context.Context, query, arg string) (*models.IngestionJob, error) {
	var job models.IngestionJob
	err := s.db.Do(ctx, func(ctx context.Context) error {
		var (
			status      string
			totalChunks sql.NullInt64
			errMsg      sql.NullString
		)
		err := s.db.conn.QueryRowContext(ctx, query, arg).Scan(&job.ID, &job.DocumentID, &status,
			&job.Progress, &totalChunks, &errMsg, &job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return err
		}
		job.Status = models.JobStatus(status)
		job.ErrorMessage = errMsg.String
		job.TotalChunks = nil
		if totalChunks.Valid {
			n := int(totalChunks.Int64)
			job.TotalChunks = &n
		}
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// StartJob moves a pending job to processing. Only one caller can win;
// everyone else gets ErrInvalidTransition.
func (s *JobStore) StartJob(ctx context.Context, id string) error {
	return s.transition(ctx, id, `
		UPDATE ingestion_jobs SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, time.Now().UTC(), id)
}

// UpdateJobProgress raises progress; it never moves backwards or past 100
func (s *JobStore) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	progress = min(max(progress, 0), 100)
	return s.transition(ctx, id, `
		UPDATE ingestion_jobs SET progress = MAX(progress, ?), updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, progress, time.Now().UTC(), id)
}

// SetJobTotalChunks records how many chunks the document produced
func (s *JobStore) SetJobTotalChunks(ctx context.Context, id string, total int) error {
	return s.transition(ctx, id, `
		UPDATE ingestion_jobs SET total_chunks = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, total, time.Now().UTC(), id)
}

// CompleteJob moves a processing job to completed with progress 100
func (s *JobStore) CompleteJob(ctx context.Context, id string) error {
	return s.transition(ctx, id, `
		UPDATE ingestion_jobs SET status = 'completed', progress = 100, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, time.Now().UTC(), id)
}

// FailJob moves a pending or processing job to failed with a message
func (s *JobStore) FailJob(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, `
		UPDATE ingestion_jobs SET status = 'failed', error_message = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'processing')
	`, message, time.Now().UTC(), id)
}

// transition runs a conditional update; zero rows means the job is missing
// or not in a state that allows the change
func (s *JobStore) transition(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s: %w", id, job.Status, ErrInvalidTransition)
}
