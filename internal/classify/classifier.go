// Package classify turns raw service response bodies into domain.Outcome values.
//
// A body is one of:
//
//	{"jobID": "..."}                                  async acknowledgement
//	{"jobID": "...", "status": "...", "actions": [..]} job status wrapper
//	{"error": 1620, "reason": "...", "jobID": "..."}   error envelope
//	{"errors": [{"error": ..., ...}]}                  error envelope (list)
//	anything else                                      success payload, decoded by a Shape
//
// Classify never panics and never returns an error: every failure, including a
// truncated or malformed body, is a Fatal or Unrecognized outcome.
package classify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// Config holds classifier settings.
type Config struct {
	// KnownCodes lists service error codes, beyond the built-in set, that
	// should be reported as Fatal instead of Unrecognized.
	KnownCodes []int `yaml:"known_codes"`
}

// Classifier maps response bodies to outcomes and remembers the error
// details of the last failed classification.
type Classifier struct {
	known map[domain.ErrorCode]bool
	log   *slog.Logger

	mu         sync.Mutex
	lastErrors []domain.ErrorObject
}

// NewClassifier creates a classifier.
func NewClassifier(cfg Config) *Classifier {
	known := make(map[domain.ErrorCode]bool, len(cfg.KnownCodes))
	for _, c := range cfg.KnownCodes {
		known[domain.ErrorCode(c)] = true
	}
	return &Classifier{
		known: known,
		log:   slog.Default().With("component", "classifier"),
	}
}

// LastErrors returns the error objects behind the most recent Fatal or
// Unrecognized outcome. It is empty after any other outcome and is replaced
// by the next Classify call.
func (c *Classifier) LastErrors() []domain.ErrorObject {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ErrorObject, len(c.lastErrors))
	copy(out, c.lastErrors)
	return out
}

// Classify interprets raw against the expected success shape.
func (c *Classifier) Classify(raw string, shape Shape) (out domain.Outcome) {
	c.setLastErrors(nil)

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Recovered while classifying response", "panic", r)
			out = c.fatal(domain.CodeParseError, "unreadable response", fmt.Sprint(r), "")
		}
	}()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return c.fatal(domain.CodeParseError, "response is not a JSON object", err.Error(), "")
	}
	if fields == nil {
		return c.fatal(domain.CodeParseError, "response is not a JSON object", "null body", "")
	}

	// An error envelope wins over any job status fields riding along with it.
	switch {
	case has(fields, "error"), has(fields, "errors"):
		return c.classifyEnvelope(raw, fields)
	case has(fields, "status") && has(fields, "jobID"), has(fields, "actions"):
		return c.classifyJobStatus(raw, shape)
	case len(fields) == 1 && has(fields, "jobID"):
		var handle domain.JobHandle
		if err := json.Unmarshal(fields["jobID"], &handle); err != nil || handle == "" {
			return c.fatal(domain.CodeParseError, "invalid job id", string(fields["jobID"]), "")
		}
		return domain.Retryable(handle, domain.RetryQueued)
	}

	return c.decode([]byte(raw), shape, "")
}

type wireError struct {
	Error  json.RawMessage `json:"error"`
	Reason string          `json:"reason"`
	Detail json.RawMessage `json:"detail"`
	JobID  string          `json:"jobID"`
}

type wireAction struct {
	Action string          `json:"action"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Errors []wireError     `json:"errors"`
}

type wireJobStatus struct {
	JobID   string       `json:"jobID"`
	Status  string       `json:"status"`
	Actions []wireAction `json:"actions"`
}

func (c *Classifier) classifyJobStatus(raw string, shape Shape) domain.Outcome {
	var js wireJobStatus
	if err := json.Unmarshal([]byte(raw), &js); err != nil {
		return c.fatal(domain.CodeParseError, "malformed job status", err.Error(), "")
	}
	handle := domain.JobHandle(js.JobID)

	switch normalizeStatus(js.Status) {
	case "queued":
		return domain.Retryable(handle, domain.RetryQueued)
	case "in progress":
		return domain.Retryable(handle, domain.RetryInProgress)
	case "finished":
		for _, a := range js.Actions {
			if normalizeStatus(a.Status) == "finished" && len(a.Result) > 0 {
				return c.decode(a.Result, shape, handle)
			}
		}
		return c.fatal(domain.CodeParseError, "finished job carries no result", "", handle)
	case "failed":
		errs := failingErrors(js.Actions)
		if len(errs) == 0 {
			return c.fatal(domain.CodeUnknownError, "job failed", "", handle)
		}
		return c.fromFailedJob(toErrorObjects(errs, handle))
	default:
		c.setLastErrors([]domain.ErrorObject{{
			Code:   domain.CodeNonstandardResponse,
			Reason: "unknown job status",
			Detail: js.Status,
			JobID:  handle,
		}})
		return domain.Unrecognized(raw, 0)
	}
}

func (c *Classifier) classifyEnvelope(raw string, fields map[string]json.RawMessage) domain.Outcome {
	var errs []wireError
	if list, ok := fields["errors"]; ok {
		if err := json.Unmarshal(list, &errs); err != nil {
			return c.fatal(domain.CodeParseError, "malformed error list", err.Error(), "")
		}
	} else {
		var one wireError
		if err := json.Unmarshal([]byte(raw), &one); err != nil {
			return c.fatal(domain.CodeParseError, "malformed error envelope", err.Error(), "")
		}
		errs = []wireError{one}
	}
	if len(errs) == 0 {
		return c.fatal(domain.CodeParseError, "empty error envelope", "", "")
	}
	return c.fromErrors(raw, toErrorObjects(errs, ""))
}

// fromErrors applies the code mapping. A QUEUED or IN_PROGRESS entry anywhere
// in the list wins; otherwise the first entry decides.
func (c *Classifier) fromErrors(raw string, errs []domain.ErrorObject) domain.Outcome {
	for _, e := range errs {
		switch e.Code {
		case domain.CodeQueued:
			return domain.Retryable(e.JobID, domain.RetryQueued)
		case domain.CodeInProgress:
			return domain.Retryable(e.JobID, domain.RetryInProgress)
		}
	}

	c.setLastErrors(errs)
	first := errs[0]
	if first.Code == domain.CodeNonstandardResponse || !c.isKnown(first.Code) {
		return domain.Unrecognized(raw, first.Code)
	}
	return domain.Fatal(first.Code, first.Reason, first.Detail, first.JobID)
}

// fromFailedJob maps the errors of a job the service reports as failed. The
// job is over, so every code other than QUEUED and IN_PROGRESS is Fatal,
// including service codes outside the built-in set.
func (c *Classifier) fromFailedJob(errs []domain.ErrorObject) domain.Outcome {
	first := errs[0]
	switch first.Code {
	case domain.CodeQueued:
		return domain.Retryable(first.JobID, domain.RetryQueued)
	case domain.CodeInProgress:
		return domain.Retryable(first.JobID, domain.RetryInProgress)
	}
	c.setLastErrors(errs)
	return domain.Fatal(first.Code, first.Reason, first.Detail, first.JobID)
}

// failingErrors returns the errors of the first failing action. An action
// carrying errors counts as failing even when its own status is missing.
func failingErrors(actions []wireAction) []wireError {
	for _, a := range actions {
		if normalizeStatus(a.Status) == "failed" && len(a.Errors) > 0 {
			return a.Errors
		}
	}
	for _, a := range actions {
		if len(a.Errors) > 0 {
			return a.Errors
		}
	}
	return nil
}

func (c *Classifier) decode(data []byte, shape Shape, handle domain.JobHandle) domain.Outcome {
	if shape == nil {
		return c.fatal(domain.CodeParseError, "no expected shape", "", handle)
	}
	result, err := shape.Decode(data)
	if err != nil {
		return c.fatal(domain.CodeParseError, "response does not match "+shape.Name(), err.Error(), handle)
	}
	return domain.Success(result)
}

func (c *Classifier) fatal(code domain.ErrorCode, reason, detail string, handle domain.JobHandle) domain.Outcome {
	c.setLastErrors([]domain.ErrorObject{{Code: code, Reason: reason, Detail: detail, JobID: handle}})
	return domain.Fatal(code, reason, detail, handle)
}

func (c *Classifier) isKnown(code domain.ErrorCode) bool {
	return code.Known() || c.known[code]
}

func (c *Classifier) setLastErrors(errs []domain.ErrorObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErrors = errs
}

func toErrorObjects(errs []wireError, fallback domain.JobHandle) []domain.ErrorObject {
	out := make([]domain.ErrorObject, 0, len(errs))
	for _, e := range errs {
		handle := domain.JobHandle(e.JobID)
		if handle == "" {
			handle = fallback
		}
		out = append(out, domain.ErrorObject{
			Code:   parseCode(e.Error),
			Reason: e.Reason,
			Detail: detailString(e.Detail),
			JobID:  handle,
		})
	}
	return out
}

// parseCode accepts numeric codes, numeric strings and code names such as
// "QUEUED". Anything else maps to zero, which is never a known code.
func parseCode(raw json.RawMessage) domain.ErrorCode {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return domain.ErrorCode(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			return domain.ErrorCode(n)
		}
		if code, ok := domain.ParseErrorCode(s); ok {
			return code
		}
	}
	return 0
}

// detailString flattens the detail field, which may be a string or any JSON value.
func detailString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func normalizeStatus(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", " ")
}

func has(fields map[string]json.RawMessage, key string) bool {
	_, ok := fields[key]
	return ok
}
