// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"escpos-service/internal/model"
)

// ErrJobNotFound is returned when no job matches the requested id
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines print job data access operations
type JobRepository interface {
	// CRUD operations
	Create(ctx context.Context, job *model.PrintJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error)
	Update(ctx context.Context, job *model.PrintJob) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Listing and filtering
	List(ctx context.Context, filter *JobFilter) ([]*model.PrintJob, int, error)

	// Analytics
	GetJobStats(ctx context.Context, printerID string) (*JobStats, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// JobFilter represents job listing filters
type JobFilter struct {
	PrinterID *string          `json:"printer_id,omitempty"`
	Status    *model.JobStatus `json:"status,omitempty"`
	Page      int              `json:"page"`
	PerPage   int              `json:"per_page"`
}

// JobStats represents job statistics
type JobStats struct {
	TotalJobs     int                     `json:"total_jobs"`
	CompletedJobs int                     `json:"completed_jobs"`
	FailedJobs    int                     `json:"failed_jobs"`
	PendingJobs   int                     `json:"pending_jobs"`
	BytesWritten  int64                   `json:"bytes_written"`
	AvgDuration   time.Duration           `json:"average_duration"`
	ByStatus      map[model.JobStatus]int `json:"by_status"`
}
