// Package health reports the state of the polling client over HTTP and the
// gRPC health protocol.
package health

import "github.com/vietddude/jobpoll/internal/core/domain"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// JobHealth describes the job the orchestrator is working on.
type JobHealth struct {
	State            domain.JobState  `json:"state"`
	JobID            string           `json:"job_id,omitempty"`
	Handle           domain.JobHandle `json:"handle,omitempty"`
	Attempts         int              `json:"attempts"`
	TotalWaitSeconds int              `json:"total_wait_seconds"`
	LastCode         string           `json:"last_code,omitempty"`
	LastReason       string           `json:"last_reason,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Job          JobHealth               `json:"job"`
	Dependencies map[string]SystemStatus `json:"dependencies,omitempty"`
}
