package domain

import (
	"fmt"
	"time"
)

// Delays dictated by the service for jobs that are not done yet.
const (
	QueuedDelay     = 2 * time.Second
	InProgressDelay = 20 * time.Second
)

// OutcomeKind discriminates Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
	OutcomeUnrecognized
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	case OutcomeUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// RetryKind tells why a job is not done yet.
type RetryKind int

const (
	RetryQueued RetryKind = iota
	RetryInProgress
)

func (k RetryKind) String() string {
	if k == RetryInProgress {
		return "in_progress"
	}
	return "queued"
}

// Delay returns the fixed status-check delay for the kind.
func (k RetryKind) Delay() time.Duration {
	if k == RetryInProgress {
		return InProgressDelay
	}
	return QueuedDelay
}

// Outcome is the classification of one raw response body. Only the fields
// belonging to Kind are meaningful.
type Outcome struct {
	Kind OutcomeKind

	// Success
	Result any

	// Retryable (Handle is also set on Fatal when the service reported one)
	Handle         JobHandle
	RetryKind      RetryKind
	SuggestedDelay time.Duration

	// Fatal
	Code   ErrorCode
	Reason string
	Detail string

	// Unrecognized
	Raw string
}

func Success(result any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Result: result}
}

func Retryable(handle JobHandle, kind RetryKind) Outcome {
	return Outcome{
		Kind:           OutcomeRetryable,
		Handle:         handle,
		RetryKind:      kind,
		SuggestedDelay: kind.Delay(),
	}
}

func Fatal(code ErrorCode, reason, detail string, handle JobHandle) Outcome {
	return Outcome{
		Kind:   OutcomeFatal,
		Code:   code,
		Reason: reason,
		Detail: detail,
		Handle: handle,
	}
}

// Unrecognized wraps a body the generic classifier could not interpret.
// code is zero when the body carried no error code at all.
func Unrecognized(raw string, code ErrorCode) Outcome {
	return Outcome{Kind: OutcomeUnrecognized, Raw: raw, Code: code}
}

// IsTerminal reports whether the outcome ends the polling loop.
func (o Outcome) IsTerminal() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeFatal
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return fmt.Sprintf("retryable(%s, job=%s, after=%s)", o.RetryKind, o.Handle, o.SuggestedDelay)
	case OutcomeFatal:
		return fmt.Sprintf("fatal(%s: %s)", o.Code, o.Reason)
	default:
		return "unrecognized"
	}
}
