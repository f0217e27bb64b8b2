// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the kind of payload a print job carries
type JobType string

const (
	JobTypeDocument JobType = "DOCUMENT"
	JobTypeRaw      JobType = "RAW"
)

// JobStatus represents the status of a print job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusPrinting  JobStatus = "PRINTING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// PrintJob represents a unit of work sent to one printer
type PrintJob struct {
	ID            uuid.UUID  `json:"id"`
	PrinterID     string     `json:"printer_id"`
	JobType       JobType    `json:"job_type"`
	Status        JobStatus  `json:"status"`
	Copies        int        `json:"copies"`
	BytesWritten  int        `json:"bytes_written"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DurationMs    *int       `json:"duration_ms,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
}

// IsCompleted checks if the job reached a final state
func (j *PrintJob) IsCompleted() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
