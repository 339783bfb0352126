package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/storage"
)

const defaultJobTTL = 7 * 24 * time.Hour

// JobRepo implements storage.JobRepository using Redis.
//
// Layout:
//
//	{ns}:job:{id}    JSON job record, expires after the TTL
//	{ns}:jobs        sorted set of job ids scored by update time
//	{ns}:job:active  id of the job still waiting on the service
type JobRepo struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
	log       *slog.Logger
}

// NewJobRepo creates a new Redis-backed job repository.
func NewJobRepo(client *Client, cfg Config) *JobRepo {
	ns := cfg.Namespace
	if ns == "" {
		ns = "jobpoll"
	}
	ttl := cfg.JobTTL
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &JobRepo{
		rdb:       client.rdb,
		namespace: ns,
		ttl:       ttl,
		log:       slog.Default().With("component", "redis_jobs"),
	}
}

// Key helpers
func (r *JobRepo) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", r.namespace, id)
}

func (r *JobRepo) indexKey() string {
	return r.namespace + ":jobs"
}

func (r *JobRepo) activeKey() string {
	return r.namespace + ":job:active"
}

// Save stores the job and updates the index and active pointer atomically.
func (r *JobRepo) Save(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.jobKey(job.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{
		Score:  float64(job.UpdatedAt.UnixNano()),
		Member: job.ID,
	})
	if storage.IsActive(job) {
		pipe.Set(ctx, r.activeKey(), job.ID, r.ttl)
	} else {
		// Only drop the pointer if it still refers to this job.
		pipe.Eval(ctx, clearActiveScript, []string{r.activeKey()}, job.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

const clearActiveScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Get retrieves a job by ID.
func (r *JobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := r.rdb.Get(ctx, r.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// GetActive returns the job the active pointer refers to, or nil.
func (r *JobRepo) GetActive(ctx context.Context) (*domain.Job, error) {
	id, err := r.rdb.Get(ctx, r.activeKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active job: %w", err)
	}

	job, err := r.Get(ctx, id)
	if errors.Is(err, storage.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !storage.IsActive(job) {
		return nil, nil
	}
	return job, nil
}

// List returns recent jobs, newest first. Expired records are pruned from the index.
func (r *JobRepo) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.Get(ctx, id)
		if errors.Is(err, storage.ErrJobNotFound) {
			if err := r.rdb.ZRem(ctx, r.indexKey(), id).Err(); err != nil {
				r.log.Warn("Failed to prune expired job from index", "job_id", id, "error", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// DeleteOlderThan removes inactive jobs last updated before cutoff.
func (r *JobRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := r.rdb.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixNano(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore failed: %w", err)
	}

	n := 0
	for _, id := range ids {
		job, err := r.Get(ctx, id)
		if err != nil && !errors.Is(err, storage.ErrJobNotFound) {
			return n, err
		}
		if job != nil && storage.IsActive(job) {
			continue
		}

		pipe := r.rdb.TxPipeline()
		pipe.Del(ctx, r.jobKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return n, fmt.Errorf("failed to delete job %s: %w", id, err)
		}
		if job != nil {
			n++
		}
	}
	return n, nil
}
