package orchestrator

import (
	"fmt"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// EventKind discriminates Event.
type EventKind int

const (
	// EventProgress reports that a status check was scheduled.
	EventProgress EventKind = iota
	// EventTerminal carries the successful result of a job.
	EventTerminal
	// EventFatal reports that a job ended with an error.
	EventFatal
	// EventUnrecognized carries a body the classifier could not interpret.
	EventUnrecognized
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventTerminal:
		return "terminal"
	case EventFatal:
		return "fatal"
	case EventUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Ends reports whether a caller waiting on a job should stop at this event.
func (k EventKind) Ends() bool {
	return k != EventProgress
}

// Event is what the orchestrator tells its caller.
type Event struct {
	Kind    EventKind
	JobID   string
	Handle  domain.JobHandle
	Message string
	Raw     string
	Outcome domain.Outcome
	Poll    domain.PollState
}

func progressMessage(kind domain.RetryKind, s domain.PollState) string {
	if kind == domain.RetryInProgress {
		return fmt.Sprintf("In progress. Try again in %d secs. Total waiting time: %d",
			s.NextDelaySeconds, s.CumulativeWaitSeconds)
	}
	return fmt.Sprintf("In queue. Try again in %d secs", s.NextDelaySeconds)
}

func fatalMessage(o domain.Outcome) string {
	msg := fmt.Sprintf("Error code: %d. Reason: %s", int(o.Code), o.Reason)
	if o.Detail != "" {
		msg += ". Detail: " + o.Detail
	}
	if o.Handle != "" {
		msg += ". JobID: " + string(o.Handle)
	}
	return msg
}
