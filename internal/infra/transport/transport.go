// Package transport carries requests to the analysis service and returns raw
// response bodies. Interpreting the bodies is left to the classifier.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// Mode selects the synchronous or asynchronous API flavour.
type Mode string

const (
	ModeAsync Mode = "async"
	ModeSync  Mode = "sync"
)

// Request is one submission to the service.
type Request struct {
	// Operation is the service operation name, e.g. "recognizespeech".
	Operation string
	// Params are sent as form fields.
	Params map[string]string
	// Files maps a form field to a local file path, sent as multipart parts.
	Files map[string]string
	// Mode defaults to ModeAsync.
	Mode Mode
}

// Transport delivers requests and status checks. Both calls block until the
// service answers and return the verbatim body.
type Transport interface {
	PostRequest(ctx context.Context, req Request) (string, error)
	GetJobStatus(ctx context.Context, handle domain.JobHandle) (string, error)
}

// Error is a transport failure that produced no usable body.
type Error struct {
	Code   domain.ErrorCode
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("transport: %s status=%d: %s", e.Code, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("transport: %s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("transport: %s", e.Code)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf maps any transport error to the error code reported to callers.
func CodeOf(err error) domain.ErrorCode {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	if errors.Is(err, context.Canceled) {
		return domain.CodeCancelled
	}
	return domain.CodeConnectionError
}
