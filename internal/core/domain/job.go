package domain

import "time"

// JobHandle identifies an outstanding remote operation. Empty means none.
type JobHandle string

// PollState tracks the polling progress of the current job.
type PollState struct {
	CumulativeWaitSeconds int  `json:"cumulative_wait_seconds"`
	NextDelaySeconds      int  `json:"next_delay_seconds"`
	Attempts              int  `json:"attempts"`
	Active                bool `json:"active"`
}

// JobState is the orchestrator lifecycle state of a submission.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateSubmitting JobState = "submitting"
	JobStatePolling    JobState = "polling"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether no further transport calls happen in s.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Job is the persisted record of one submission.
type Job struct {
	ID         string    `json:"id"          db:"id"`
	Operation  string    `json:"operation"   db:"operation"`
	Handle     JobHandle `json:"handle"      db:"handle"`
	State      JobState  `json:"state"       db:"state"`
	Poll       PollState `json:"poll"        db:"-"`
	LastCode   ErrorCode `json:"last_code"   db:"last_code"`
	LastReason string    `json:"last_reason" db:"last_reason"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}
