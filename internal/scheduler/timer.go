package scheduler

import (
	"sync"
	"time"
)

// Stopper cancels a pending callback.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules fn after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, fn func()) Stopper

// RealAfterFunc uses the runtime timer.
func RealAfterFunc(d time.Duration, fn func()) Stopper {
	return time.AfterFunc(d, fn)
}

// Timer holds at most one pending callback. Arming it again cancels the
// previous callback first.
type Timer struct {
	after AfterFunc

	mu      sync.Mutex
	pending Stopper
	seq     uint64
}

// NewTimer creates a timer. A nil after uses RealAfterFunc.
func NewTimer(after AfterFunc) *Timer {
	if after == nil {
		after = RealAfterFunc
	}
	return &Timer{after: after}
}

// Arm schedules fn after d, replacing any pending callback. A callback that
// already fired but lost the race with Arm or Stop is not run.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.pending.Stop()
	}
	t.seq++
	seq := t.seq
	t.pending = t.after(d, func() {
		t.mu.Lock()
		if seq != t.seq {
			t.mu.Unlock()
			return
		}
		t.pending = nil
		t.mu.Unlock()
		fn()
	})
}

// Stop cancels the pending callback, if any. It reports whether one was pending.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	if t.pending == nil {
		return false
	}
	t.pending.Stop()
	t.pending = nil
	return true
}

// Pending reports whether a callback is waiting to fire.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}
