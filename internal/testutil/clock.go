// Package testutil holds fakes shared by package tests.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/vietddude/jobpoll/internal/scheduler"
)

// ManualClock is a scheduler.AfterFunc whose callbacks only run when the test
// advances time.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (m *manualTimer) Stop() bool {
	m.clock.mu.Lock()
	defer m.clock.mu.Unlock()
	if m.stopped || m.fired {
		return false
	}
	m.stopped = true
	return true
}

// NewManualClock creates a clock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc satisfies scheduler.AfterFunc.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) scheduler.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves time forward and runs every callback that became due, in
// deadline order, outside the clock lock.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	rest := c.pending[:0]
	for _, t := range c.pending {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.pending = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the delays, relative to now, of callbacks still waiting.
func (c *ManualClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.pending {
		if !t.stopped {
			out = append(out, t.at-c.now)
		}
	}
	return out
}
