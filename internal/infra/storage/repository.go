package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

var (
	// ErrJobNotFound is returned when a job record doesn't exist
	ErrJobNotFound = errors.New("job not found")
)

// JobRepository persists submission records so an outstanding job can be
// resumed by a later process.
type JobRepository interface {
	// Save inserts or replaces a job record
	Save(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by submission ID
	Get(ctx context.Context, id string) (*domain.Job, error)

	// GetActive returns the most recently updated job that still holds a
	// handle and has not reached a terminal state, or nil
	GetActive(ctx context.Context) (*domain.Job, error)

	// List returns the most recently updated jobs, newest first
	List(ctx context.Context, limit int) ([]*domain.Job, error)

	// DeleteOlderThan removes inactive jobs last updated before cutoff and
	// returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// IsActive reports whether job still waits on the service.
func IsActive(job *domain.Job) bool {
	return job != nil && job.Handle != "" && !job.State.IsTerminal()
}
