package orchestrator

import (
	"errors"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// State is an alias for domain.JobState for internal use.
type State = domain.JobState

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.JobStateIdle: {domain.JobStateSubmitting, domain.JobStatePolling},
	domain.JobStateSubmitting: {
		domain.JobStatePolling,
		domain.JobStateCompleted,
		domain.JobStateFailed,
		domain.JobStateIdle,
	},
	domain.JobStatePolling: {
		domain.JobStatePolling,
		domain.JobStateCompleted,
		domain.JobStateFailed,
	},
	domain.JobStateCompleted: {domain.JobStateSubmitting, domain.JobStatePolling},
	domain.JobStateFailed:    {domain.JobStateSubmitting, domain.JobStatePolling},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.JobStateIdle:
		return "Idle - no submission outstanding"
	case domain.JobStateSubmitting:
		return "Submitting - waiting for the service to accept the request"
	case domain.JobStatePolling:
		return "Polling - job accepted, waiting for the next status check"
	case domain.JobStateCompleted:
		return "Completed - result delivered"
	case domain.JobStateFailed:
		return "Failed - job ended with an error or was cancelled"
	default:
		return "Unknown state"
	}
}
