// Package scheduler decides when the next status check of a job runs.
//
// The delay is dictated by the service through the outcome kind (2s while
// queued, 20s while in progress); it is not an exponential backoff. Polling is
// unbounded unless a Policy limit is set.
package scheduler

import (
	"errors"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// ErrPollBudgetExceeded is returned when a Policy limit is reached.
var ErrPollBudgetExceeded = errors.New("poll budget exceeded")

// Policy bounds the polling loop. Zero values mean no limit.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	MaxWait     time.Duration `yaml:"max_wait"`
}

// Action asks the orchestrator to check the status of Handle after After.
type Action struct {
	Handle domain.JobHandle
	After  time.Duration
}

// Scheduler is stateless; poll state is passed in and returned.
type Scheduler struct {
	policy Policy
}

// New creates a scheduler with the given policy.
func New(policy Policy) *Scheduler {
	return &Scheduler{policy: policy}
}

// Policy returns the configured limits.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// OnRetryable computes the next poll state and the single status check to
// schedule for a retryable outcome. Cumulative wait grows by the delay of
// every in-progress outcome and is used for progress reporting only.
func (s *Scheduler) OnRetryable(outcome domain.Outcome, prev domain.PollState) (domain.PollState, Action, error) {
	delay := outcome.SuggestedDelay
	if delay <= 0 {
		delay = outcome.RetryKind.Delay()
	}

	next := prev
	next.Active = true
	next.Attempts++
	next.NextDelaySeconds = int(delay / time.Second)
	if outcome.RetryKind == domain.RetryInProgress {
		next.CumulativeWaitSeconds += next.NextDelaySeconds
	}

	if s.policy.MaxAttempts > 0 && next.Attempts > s.policy.MaxAttempts {
		return next, Action{}, ErrPollBudgetExceeded
	}
	if s.policy.MaxWait > 0 && time.Duration(next.CumulativeWaitSeconds)*time.Second > s.policy.MaxWait {
		return next, Action{}, ErrPollBudgetExceeded
	}

	return next, Action{Handle: outcome.Handle, After: delay}, nil
}
