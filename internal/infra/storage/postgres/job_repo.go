package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/storage"
)

// JobRepo implements storage.JobRepository using PostgreSQL.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new PostgreSQL job repository.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

type jobRow struct {
	ID                    string    `db:"id"`
	Operation             string    `db:"operation"`
	Handle                string    `db:"handle"`
	State                 string    `db:"state"`
	CumulativeWaitSeconds int       `db:"cumulative_wait_seconds"`
	NextDelaySeconds      int       `db:"next_delay_seconds"`
	Attempts              int       `db:"attempts"`
	LastCode              int       `db:"last_code"`
	LastReason            string    `db:"last_reason"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

const jobColumns = `id, operation, handle, state, cumulative_wait_seconds, next_delay_seconds,
	attempts, last_code, last_reason, created_at, updated_at`

func toRow(job *domain.Job) jobRow {
	return jobRow{
		ID:                    job.ID,
		Operation:             job.Operation,
		Handle:                string(job.Handle),
		State:                 string(job.State),
		CumulativeWaitSeconds: job.Poll.CumulativeWaitSeconds,
		NextDelaySeconds:      job.Poll.NextDelaySeconds,
		Attempts:              job.Poll.Attempts,
		LastCode:              int(job.LastCode),
		LastReason:            job.LastReason,
		CreatedAt:             job.CreatedAt,
		UpdatedAt:             job.UpdatedAt,
	}
}

func (r jobRow) toJob() *domain.Job {
	return &domain.Job{
		ID:        r.ID,
		Operation: r.Operation,
		Handle:    domain.JobHandle(r.Handle),
		State:     domain.JobState(r.State),
		Poll: domain.PollState{
			CumulativeWaitSeconds: r.CumulativeWaitSeconds,
			NextDelaySeconds:      r.NextDelaySeconds,
			Attempts:              r.Attempts,
			Active:                r.Handle != "",
		},
		LastCode:   domain.ErrorCode(r.LastCode),
		LastReason: r.LastReason,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Save upserts a job record.
func (r *JobRepo) Save(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (:id, :operation, :handle, :state, :cumulative_wait_seconds, :next_delay_seconds,
			:attempts, :last_code, :last_reason, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			operation = EXCLUDED.operation,
			handle = EXCLUDED.handle,
			state = EXCLUDED.state,
			cumulative_wait_seconds = EXCLUDED.cumulative_wait_seconds,
			next_delay_seconds = EXCLUDED.next_delay_seconds,
			attempts = EXCLUDED.attempts,
			last_code = EXCLUDED.last_code,
			last_reason = EXCLUDED.last_reason,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, toRow(job)); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Get returns a job by ID.
func (r *JobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toJob(), nil
}

// GetActive returns the latest job still waiting on the service.
func (r *JobRepo) GetActive(ctx context.Context) (*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE handle <> '' AND state NOT IN ('completed', 'failed')
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var row jobRow
	err := r.db.GetContext(ctx, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active job: %w", err)
	}
	return row.toJob(), nil
}

// List returns recent jobs, newest first. A non-positive limit returns 50.
func (r *JobRepo) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []jobRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+jobColumns+` FROM jobs ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toJob())
	}
	return jobs, nil
}

// DeleteOlderThan removes finished jobs last updated before cutoff.
func (r *JobRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM jobs
		WHERE updated_at < $1
		  AND NOT (handle <> '' AND state NOT IN ('completed', 'failed'))
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}
	return int(n), nil
}
