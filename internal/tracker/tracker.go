// Package tracker holds the identity and poll state of the one job an
// orchestrator may have outstanding.
//
// The tracker is the only owner of the JobHandle. HasActiveJob is true from
// the first retryable outcome of a submission until Clear, which runs once per
// finished or failed job.
package tracker

import (
	"sync"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// Tracker is safe for concurrent use.
type Tracker struct {
	mu         sync.RWMutex
	handle     domain.JobHandle
	state      domain.PollState
	generation uint64
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// HasActiveJob reports whether a job handle is held.
func (t *Tracker) HasActiveJob() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle != ""
}

// CurrentHandle returns the held handle, or "" when idle.
func (t *Tracker) CurrentHandle() domain.JobHandle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle
}

// BeginJob makes handle the current job, superseding any previous one.
// The generation changes only when the handle does, so repeated outcomes for
// the same job keep their poll state. An empty handle is ignored.
func (t *Tracker) BeginJob(handle domain.JobHandle) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if handle == "" {
		return t.generation
	}
	if handle != t.handle {
		t.generation++
		t.handle = handle
		t.state = domain.PollState{}
	}
	t.state.Active = true
	return t.generation
}

// Clear drops the current job and its poll state. It returns false if no job
// was held, so callers can tell a second Clear for the same job apart.
func (t *Tracker) Clear() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	held := t.handle != ""
	t.handle = ""
	t.state = domain.PollState{}
	t.generation++
	return held
}

// Generation identifies the current job; it changes on every BeginJob with a
// new handle and on every Clear. Timers and in-flight calls compare it to
// detect that they were superseded.
func (t *Tracker) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

// State returns a copy of the poll state.
func (t *Tracker) State() domain.PollState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Update stores the poll state for the current job. Active always mirrors
// whether a handle is held.
func (t *Tracker) Update(s domain.PollState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s.Active = t.handle != ""
	t.state = s
}
