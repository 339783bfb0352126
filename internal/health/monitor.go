package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// JobSource exposes the orchestrator state to the monitor.
type JobSource interface {
	State() domain.JobState
	Job() *domain.Job
	Poll() domain.PollState
}

// Check probes a dependency such as the job store.
type Check func(ctx context.Context) error

// Monitor aggregates health status from the orchestrator and its dependencies.
type Monitor struct {
	source   JobSource
	checks   map[string]Check
	interval time.Duration
	listener func(SystemStatus)
	log      *slog.Logger

	mu         sync.RWMutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor.
func NewMonitor(source JobSource, checks map[string]Check) *Monitor {
	return &Monitor{
		source:   source,
		checks:   checks,
		interval: 10 * time.Second,
		log:      slog.Default().With("component", "health"),
	}
}

// OnChange registers fn to receive the system status after every check.
func (m *Monitor) OnChange(fn func(SystemStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = fn
}

// CheckHealth builds a report. Dependency probes run at most once per interval.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deps map[string]SystemStatus
	if m.lastReport != nil && time.Since(m.lastCheck) < m.interval {
		deps = m.lastReport.Dependencies
	} else {
		deps = m.probe(ctx)
		m.lastCheck = time.Now()
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Job:          m.jobHealth(),
		Dependencies: deps,
	}

	// Aggregate status (worst case wins)
	for _, status := range deps {
		if status == StatusCritical {
			report.SystemStatus = StatusCritical
			break
		}
	}
	if report.SystemStatus == StatusHealthy && unreachable(report.Job) {
		report.SystemStatus = StatusDegraded
	}

	m.lastReport = &report
	if m.listener != nil {
		m.listener(report.SystemStatus)
	}
	return report
}

// Start re-checks health periodically until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckHealth(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) map[string]SystemStatus {
	deps := make(map[string]SystemStatus, len(m.checks))
	for name, check := range m.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			m.log.Warn("Dependency check failed", "dependency", name, "error", err)
			deps[name] = StatusCritical
			continue
		}
		deps[name] = StatusHealthy
	}
	return deps
}

func (m *Monitor) jobHealth() JobHealth {
	h := JobHealth{State: m.source.State()}
	if job := m.source.Job(); job != nil {
		h.JobID = job.ID
		h.Handle = job.Handle
		if job.LastCode != 0 {
			h.LastCode = job.LastCode.String()
		}
		h.LastReason = job.LastReason
	}
	poll := m.source.Poll()
	h.Attempts = poll.Attempts
	h.TotalWaitSeconds = poll.CumulativeWaitSeconds
	return h
}

// unreachable reports whether the last job failed because the service could
// not be reached.
func unreachable(h JobHealth) bool {
	if h.State != domain.JobStateFailed {
		return false
	}
	switch h.LastCode {
	case domain.CodeConnectionError.String(), domain.CodeHTTPError.String():
		return true
	}
	return false
}
