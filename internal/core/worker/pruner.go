package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/jobpoll/internal/infra/storage"
)

// Pruner deletes old job records based on retention policy.
type Pruner struct {
	retention time.Duration
	repo      storage.JobRepository
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker. A non-positive retention disables it.
func NewPruner(retention time.Duration, repo storage.JobRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Calculate check interval (e.g., 10% of retention period, but max 1 hour)
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	_, _ = p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Prune(ctx)
		}
	}
}

// Prune runs one pass and returns the number of removed records.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune jobs", "cutoff", cutoff, "error", err)
		return n, err
	}
	if n > 0 {
		p.log.Info("Pruned old jobs", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
