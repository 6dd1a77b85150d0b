// ABOUTME: IngestionJob tracks the asynchronous processing of one uploaded document
// ABOUTME: Status moves pending -> processing -> completed|failed and never back
package models

import "time"

// JobStatus is the lifecycle state of an ingestion job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal returns true for completed and failed
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether a job may move from s to next
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing || next == JobFailed
	case JobProcessing:
		return next == JobCompleted || next == JobFailed
	}
	return false
}

// IngestionJob is the persisted state of a document's ingestion run
type IngestionJob struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	TotalChunks  *int      `json:"total_chunks,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobStatusReport is what a polling client sees
type JobStatusReport struct {
	JobID        string    `json:"job_id"`
	DocumentID   string    `json:"document_id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	TotalChunks  *int      `json:"total_chunks,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Report converts a job into its polling view
func (j *IngestionJob) Report() JobStatusReport {
	return JobStatusReport{
		JobID:        j.ID,
		DocumentID:   j.DocumentID,
		Status:       j.Status,
		Progress:     j.Progress,
		TotalChunks:  j.TotalChunks,
		ErrorMessage: j.ErrorMessage,
	}
}
