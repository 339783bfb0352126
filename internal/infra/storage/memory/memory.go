package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/storage"
)

// JobRepo keeps job records in process memory.
type JobRepo struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

func NewJobRepo() *JobRepo {
	return &JobRepo{jobs: make(map[string]domain.Job)}
}

func (r *JobRepo) Save(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, storage.ErrJobNotFound
	}
	return &job, nil
}

func (r *JobRepo) GetActive(ctx context.Context) (*domain.Job, error) {
	jobs, err := r.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if storage.IsActive(job) {
			return job, nil
		}
	}
	return nil, nil
}

func (r *JobRepo) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		j := job
		out = append(out, &j)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *JobRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, job := range r.jobs {
		if storage.IsActive(&job) || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		delete(r.jobs, id)
		n++
	}
	return n, nil
}
