// internal/repository/job_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/model"
)

const defaultPerPage = 50

// jobRepository keeps print jobs in memory for the lifetime of the process
type jobRepository struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*model.PrintJob
	logger *zap.Logger
}

// NewJobRepository creates a new in-memory job repository
func NewJobRepository(logger *zap.Logger) JobRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &jobRepository{
		jobs:   make(map[uuid.UUID]*model.PrintJob),
		logger: logger,
	}
}

// Create stores a new job
func (r *jobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	if job.ID == uuid.Nil {
		return fmt.Errorf("failed to create job: missing id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		r.logger.Error("Failed to create job", zap.String("job_id", job.ID.String()))
		return fmt.Errorf("failed to create job: duplicate id %s", job.ID)
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetByID retrieves a job by ID
func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return cloneJob(job), nil
}

// Update replaces an existing job
func (r *jobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return fmt.Errorf("failed to update job: %w: %s", ErrJobNotFound, job.ID)
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

// Delete removes a job
func (r *jobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return fmt.Errorf("failed to delete job: %w: %s", ErrJobNotFound, id)
	}
	delete(r.jobs, id)
	return nil
}

// List returns one page of jobs matching the filter, newest first, and the
// total number of matches
func (r *jobRepository) List(ctx context.Context, filter *JobFilter) ([]*model.PrintJob, int, error) {
	if filter == nil {
		filter = &JobFilter{}
	}

	r.mu.RLock()
	matched := make([]*model.PrintJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.PrinterID != nil && job.PrinterID != *filter.PrinterID {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		matched = append(matched, cloneJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	start := (page - 1) * perPage
	if start >= total {
		return []*model.PrintJob{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// GetJobStats aggregates jobs for one printer, or all printers when
// printerID is empty
func (r *jobRepository) GetJobStats(ctx context.Context, printerID string) (*JobStats, error) {
	stats := &JobStats{ByStatus: make(map[model.JobStatus]int)}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var totalDuration time.Duration
	var timed int
	for _, job := range r.jobs {
		if printerID != "" && job.PrinterID != printerID {
			continue
		}
		stats.TotalJobs++
		stats.ByStatus[job.Status]++
		stats.BytesWritten += int64(job.BytesWritten)

		switch job.Status {
		case model.JobStatusCompleted:
			stats.CompletedJobs++
		case model.JobStatusFailed:
			stats.FailedJobs++
		default:
			stats.PendingJobs++
		}

		if job.DurationMs != nil {
			totalDuration += time.Duration(*job.DurationMs) * time.Millisecond
			timed++
		}
	}

	if timed > 0 {
		stats.AvgDuration = totalDuration / time.Duration(timed)
	}
	return stats, nil
}

// DeleteOlderThan removes finished jobs created before the cutoff
func (r *jobRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, job := range r.jobs {
		if job.IsCompleted() && job.CreatedAt.Before(olderThan) {
			delete(r.jobs, id)
			deleted++
		}
	}

	if deleted > 0 {
		r.logger.Debug("Pruned job history", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// cloneJob copies a job so callers never share the stored pointer
func cloneJob(job *model.PrintJob) *model.PrintJob {
	c := *job
	return &c
}
