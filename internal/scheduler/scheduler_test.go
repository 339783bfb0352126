package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

func TestOnRetryable_FixedDelays(t *testing.T) {
	s := New(Policy{})

	tests := []struct {
		name      string
		outcome   domain.Outcome
		wantDelay time.Duration
		wantWait  int
	}{
		{"queued", domain.Retryable("J1", domain.RetryQueued), 2 * time.Second, 0},
		{"in progress", domain.Retryable("J1", domain.RetryInProgress), 20 * time.Second, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, action, err := s.OnRetryable(tt.outcome, domain.PollState{})
			if err != nil {
				t.Fatalf("OnRetryable: %v", err)
			}
			if action.After != tt.wantDelay || action.Handle != "J1" {
				t.Errorf("action = %+v, want J1 after %v", action, tt.wantDelay)
			}
			if next.CumulativeWaitSeconds != tt.wantWait {
				t.Errorf("cumulative = %d, want %d", next.CumulativeWaitSeconds, tt.wantWait)
			}
			if next.NextDelaySeconds != int(tt.wantDelay/time.Second) || !next.Active || next.Attempts != 1 {
				t.Errorf("next = %+v", next)
			}
		})
	}
}

func TestOnRetryable_CumulativeWait(t *testing.T) {
	s := New(Policy{})
	state := domain.PollState{}

	// Queued outcomes do not count toward the wait total.
	state, _, _ = s.OnRetryable(domain.Retryable("J1", domain.RetryQueued), state)

	for n := 1; n <= 10; n++ {
		var err error
		state, _, err = s.OnRetryable(domain.Retryable("J1", domain.RetryInProgress), state)
		if err != nil {
			t.Fatalf("attempt %d: %v", n, err)
		}
		if state.CumulativeWaitSeconds != 20*n {
			t.Fatalf("after %d in-progress outcomes cumulative = %d, want %d", n, state.CumulativeWaitSeconds, 20*n)
		}
	}
	if state.Attempts != 11 {
		t.Errorf("attempts = %d, want 11", state.Attempts)
	}
}

func TestOnRetryable_Unbounded(t *testing.T) {
	s := New(Policy{})
	state := domain.PollState{}
	for i := 0; i < 10000; i++ {
		var err error
		state, _, err = s.OnRetryable(domain.Retryable("J1", domain.RetryInProgress), state)
		if err != nil {
			t.Fatalf("zero policy stopped polling at attempt %d: %v", i, err)
		}
	}
}

func TestOnRetryable_PolicyLimits(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		okRuns int
	}{
		{"max attempts", Policy{MaxAttempts: 3}, 3},
		{"max wait", Policy{MaxWait: time.Minute}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.policy)
			state := domain.PollState{}
			for i := 0; i < tt.okRuns; i++ {
				var err error
				state, _, err = s.OnRetryable(domain.Retryable("J1", domain.RetryInProgress), state)
				if err != nil {
					t.Fatalf("run %d: %v", i+1, err)
				}
			}
			_, _, err := s.OnRetryable(domain.Retryable("J1", domain.RetryInProgress), state)
			if !errors.Is(err, ErrPollBudgetExceeded) {
				t.Errorf("err = %v, want ErrPollBudgetExceeded", err)
			}
		})
	}
}
