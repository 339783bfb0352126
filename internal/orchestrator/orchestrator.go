// Package orchestrator drives one asynchronous job from submission to a
// terminal outcome.
//
// Submit forwards a request to the transport. Every body that comes back is
// classified; a not-done-yet outcome makes the scheduler arm a single status
// check, whose body goes through the same path. At most one job is
// outstanding per Orchestrator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/jobpoll/internal/classify"
	"github.com/vietddude/jobpoll/internal/core/domain"
	"github.com/vietddude/jobpoll/internal/infra/storage"
	"github.com/vietddude/jobpoll/internal/infra/transport"
	"github.com/vietddude/jobpoll/internal/metrics"
	"github.com/vietddude/jobpoll/internal/scheduler"
	"github.com/vietddude/jobpoll/internal/tracker"
)

var (
	// ErrAlreadyActive is returned when a job is outstanding or a submission
	// is still in flight.
	ErrAlreadyActive = errors.New("a job is already active")
	// ErrNoActiveJob is returned by PollNow when no job handle is held.
	ErrNoActiveJob = errors.New("no active job")
	// ErrNoHandle is returned by Resume for a record without a job handle.
	ErrNoHandle = errors.New("job has no handle")
	// ErrNoTransport is returned by New without a transport.
	ErrNoTransport = errors.New("transport is required")
	// ErrCheckInFlight is returned by PollNow while a status check is outstanding.
	ErrCheckInFlight = errors.New("status check already in flight")
)

const (
	defaultEventBuffer = 64
	persistTimeout     = 5 * time.Second
)

// Config wires the orchestrator. Only Transport is required.
type Config struct {
	Transport  transport.Transport
	Classifier *classify.Classifier
	Scheduler  *scheduler.Scheduler
	// Shape decodes successful results. Defaults to the document list shape.
	Shape classify.Shape
	// Repository, when set, receives the job record on every state change.
	Repository storage.JobRepository
	// AfterFunc replaces the runtime timer, for tests.
	AfterFunc   scheduler.AfterFunc
	EventBuffer int
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	transport  transport.Transport
	classifier *classify.Classifier
	scheduler  *scheduler.Scheduler
	shape      classify.Shape
	repo       storage.JobRepository
	tracker    *tracker.Tracker
	timer      *scheduler.Timer
	events     chan Event
	log        *slog.Logger

	mu        sync.Mutex
	state     State
	job       *domain.Job
	jobCtx    context.Context
	cancelJob context.CancelFunc
	// checking is the token of the outstanding status check, zero when none.
	checking uint64
	checkSeq uint64
}

// New creates an orchestrator in the Idle state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.NewClassifier(classify.Config{})
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.New(scheduler.Policy{})
	}
	if cfg.Shape == nil {
		cfg.Shape = classify.RecognizeSpeechShape()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	return &Orchestrator{
		transport:  cfg.Transport,
		classifier: cfg.Classifier,
		scheduler:  cfg.Scheduler,
		shape:      cfg.Shape,
		repo:       cfg.Repository,
		tracker:    tracker.New(),
		timer:      scheduler.NewTimer(cfg.AfterFunc),
		events:     make(chan Event, cfg.EventBuffer),
		log:        slog.Default().With("component", "orchestrator"),
		state:      domain.JobStateIdle,
		jobCtx:     context.Background(),
		cancelJob:  func() {},
	}, nil
}

// Events delivers progress and outcome notifications. When the consumer
// falls behind, the oldest buffered event is dropped.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// HasActiveJob reports whether a job handle is held.
func (o *Orchestrator) HasActiveJob() bool {
	return o.tracker.HasActiveJob()
}

// Poll returns the poll state of the current job.
func (o *Orchestrator) Poll() domain.PollState {
	return o.tracker.State()
}

// Job returns a copy of the current job record, or nil before the first submission.
func (o *Orchestrator) Job() *domain.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return nil
	}
	j := *o.job
	return &j
}

// LastErrors returns the error objects behind the most recent failed classification.
func (o *Orchestrator) LastErrors() []domain.ErrorObject {
	return o.classifier.LastErrors()
}

// Submit starts a new job. It returns ErrAlreadyActive, without contacting
// the service, while a job is outstanding or a submission is in flight.
func (o *Orchestrator) Submit(ctx context.Context, req transport.Request) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tracker.HasActiveJob() || o.state == domain.JobStateSubmitting {
		metrics.RejectedSubmissionsTotal.Inc()
		o.log.Warn("Submission rejected", "operation", req.Operation, "handle", o.tracker.CurrentHandle())
		return ErrAlreadyActive
	}

	o.timer.Stop()
	o.cancelJob()
	o.checking = 0
	o.tracker.Clear()
	gen := o.tracker.Generation()

	now := time.Now()
	o.job = &domain.Job{
		ID:        uuid.NewString(),
		Operation: req.Operation,
		State:     domain.JobStateSubmitting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.jobCtx, o.cancelJob = context.WithCancel(ctx)
	o.setState(domain.JobStateSubmitting, "submit")
	o.persist()

	metrics.SubmissionsTotal.WithLabelValues(req.Operation).Inc()
	o.log.Info("Submitting request", "job_id", o.job.ID, "operation", req.Operation)

	jobCtx := o.jobCtx
	go func() {
		raw, err := o.transport.PostRequest(jobCtx, req)
		o.deliver(gen, raw, err)
	}()
	return nil
}

// HandleResponse classifies a body received for the current job. Bodies
// arriving when no submission or job is outstanding are dropped.
func (o *Orchestrator) HandleResponse(raw string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.accepting() {
		o.log.Debug("Dropping response, nothing outstanding", "state", o.state)
		return
	}
	o.apply(o.classifier.Classify(raw, o.shape))
}

// Cancel abandons the current job. It returns false when nothing was outstanding.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.accepting() {
		return false
	}
	handle := o.tracker.CurrentHandle()
	o.finish(domain.JobStateFailed, EventFatal,
		domain.Fatal(domain.CodeCancelled, "cancelled", "", handle))
	return true
}

// Resume adopts the handle of a persisted job and checks its status at once.
// The cumulative wait of the record carries over.
func (o *Orchestrator) Resume(ctx context.Context, job *domain.Job) error {
	if job == nil || job.Handle == "" {
		return ErrNoHandle
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tracker.HasActiveJob() || o.state == domain.JobStateSubmitting {
		return ErrAlreadyActive
	}

	o.timer.Stop()
	o.cancelJob()
	o.checking = 0
	o.tracker.Clear()
	gen := o.tracker.BeginJob(job.Handle)
	o.tracker.Update(job.Poll)

	j := *job
	j.State = domain.JobStatePolling
	j.UpdatedAt = time.Now()
	o.job = &j
	o.jobCtx, o.cancelJob = context.WithCancel(ctx)
	o.setState(domain.JobStatePolling, "resume")
	o.persist()
	metrics.ActiveJob.Set(1)

	o.log.Info("Resuming job", "job_id", j.ID, "handle", j.Handle,
		"total_wait", j.Poll.CumulativeWaitSeconds)

	jobCtx := o.jobCtx
	token := o.beginCheck()
	go o.runCheck(jobCtx, gen, token, job.Handle)
	return nil
}

// PollNow checks the status of the active job immediately, replacing any
// scheduled check. It returns ErrCheckInFlight while a check is outstanding.
func (o *Orchestrator) PollNow(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	handle := o.tracker.CurrentHandle()
	if handle == "" {
		return ErrNoActiveJob
	}
	if o.checking != 0 {
		return ErrCheckInFlight
	}
	o.timer.Stop()
	gen := o.tracker.Generation()
	token := o.beginCheck()
	go o.runCheck(ctx, gen, token, handle)
	return nil
}

// Wait blocks until the current job ends or an unrecognized body arrives,
// discarding progress events.
func (o *Orchestrator) Wait(ctx context.Context) (domain.Outcome, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.Outcome{}, ctx.Err()
		case ev := <-o.events:
			if ev.Kind.Ends() {
				return ev.Outcome, nil
			}
		}
	}
}

// checkStatus runs a scheduled status check. It is skipped when the job
// moved on or another check is already outstanding.
func (o *Orchestrator) checkStatus(ctx context.Context, gen uint64, handle domain.JobHandle) {
	o.mu.Lock()
	if o.tracker.Generation() != gen || o.checking != 0 {
		o.mu.Unlock()
		o.log.Debug("Skipping status check", "handle", handle, "generation", gen)
		return
	}
	token := o.beginCheck()
	o.mu.Unlock()

	o.runCheck(ctx, gen, token, handle)
}

// beginCheck reserves the single status check slot. Callers hold o.mu.
func (o *Orchestrator) beginCheck() uint64 {
	o.checkSeq++
	o.checking = o.checkSeq
	return o.checking
}

func (o *Orchestrator) runCheck(ctx context.Context, gen, token uint64, handle domain.JobHandle) {
	metrics.StatusChecksTotal.Inc()
	raw, err := o.transport.GetJobStatus(ctx, handle)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.checking == token {
		o.checking = 0
	}
	o.route(gen, raw, err)
}

// deliver routes a transport result for generation gen.
func (o *Orchestrator) deliver(gen uint64, raw string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.route(gen, raw, err)
}

// route applies a transport result. Results of a superseded generation are
// dropped. Callers hold o.mu.
func (o *Orchestrator) route(gen uint64, raw string, err error) {
	if gen != o.tracker.Generation() || !o.accepting() {
		o.log.Debug("Dropping stale response", "generation", gen)
		return
	}

	if err != nil {
		code := transport.CodeOf(err)
		o.log.Error("Transport call failed", "code", code, "error", err)
		o.apply(domain.Fatal(code, "transport failure", err.Error(), o.tracker.CurrentHandle()))
		return
	}
	o.apply(o.classifier.Classify(raw, o.shape))
}

// apply acts on an outcome. Callers hold o.mu.
func (o *Orchestrator) apply(out domain.Outcome) {
	code := "none"
	if out.Code != 0 {
		code = out.Code.String()
	}
	metrics.OutcomesTotal.WithLabelValues(out.Kind.String(), code).Inc()

	switch out.Kind {
	case domain.OutcomeSuccess:
		o.finish(domain.JobStateCompleted, EventTerminal, out)
	case domain.OutcomeFatal:
		o.finish(domain.JobStateFailed, EventFatal, out)
	case domain.OutcomeRetryable:
		o.retry(out)
	case domain.OutcomeUnrecognized:
		o.unrecognized(out)
	}
}

func (o *Orchestrator) retry(out domain.Outcome) {
	if out.Handle == "" {
		out.Handle = o.tracker.CurrentHandle()
	}
	if out.Handle == "" {
		o.finish(domain.JobStateFailed, EventFatal,
			domain.Fatal(domain.CodeParseError, "retryable response carries no job id", "", ""))
		return
	}

	gen := o.tracker.BeginJob(out.Handle)
	next, action, err := o.scheduler.OnRetryable(out, o.tracker.State())
	if err != nil {
		detail := fmt.Sprintf("attempts=%d total_wait=%ds", next.Attempts, next.CumulativeWaitSeconds)
		o.finish(domain.JobStateFailed, EventFatal,
			domain.Fatal(domain.CodeTimeout, err.Error(), detail, out.Handle))
		return
	}
	o.tracker.Update(next)
	next = o.tracker.State()

	o.setState(domain.JobStatePolling, out.RetryKind.String())
	o.job.Handle = out.Handle
	o.job.State = domain.JobStatePolling
	o.job.Poll = next
	o.job.LastCode = 0
	o.job.LastReason = ""
	o.job.UpdatedAt = time.Now()
	o.persist()

	metrics.ActiveJob.Set(1)
	metrics.JobWaitSeconds.Set(float64(next.CumulativeWaitSeconds))

	ctx := o.jobCtx
	handle := action.Handle
	o.timer.Arm(action.After, func() {
		o.checkStatus(ctx, gen, handle)
	})

	msg := progressMessage(out.RetryKind, next)
	o.log.Info(msg, "job_id", o.job.ID, "handle", handle, "attempts", next.Attempts)
	o.emit(Event{
		Kind:    EventProgress,
		JobID:   o.job.ID,
		Handle:  handle,
		Message: msg,
		Outcome: out,
		Poll:    next,
	})
}

// unrecognized leaves the tracker as it is. With a job outstanding the
// orchestrator keeps polling state but arms no timer; the caller decides
// between PollNow and Cancel.
func (o *Orchestrator) unrecognized(out domain.Outcome) {
	handle := o.tracker.CurrentHandle()
	if handle == "" {
		o.setState(domain.JobStateIdle, "unrecognized")
		o.job.State = domain.JobStateIdle
	}
	o.job.LastCode = out.Code
	o.job.LastReason = "unrecognized response"
	o.job.UpdatedAt = time.Now()
	o.persist()

	o.log.Warn("Unrecognized response", "job_id", o.job.ID, "handle", handle, "code", out.Code)
	o.emit(Event{
		Kind:    EventUnrecognized,
		JobID:   o.job.ID,
		Handle:  handle,
		Message: "Unrecognized response",
		Raw:     out.Raw,
		Outcome: out,
		Poll:    o.tracker.State(),
	})
}

// finish ends the current job. Callers hold o.mu.
func (o *Orchestrator) finish(state State, kind EventKind, out domain.Outcome) {
	o.timer.Stop()
	o.cancelJob()
	o.checking = 0
	poll := o.tracker.State()
	handle := o.tracker.CurrentHandle()
	if out.Handle == "" {
		out.Handle = handle
	}
	o.tracker.Clear()

	o.setState(state, out.Kind.String())
	o.job.State = state
	o.job.Poll = poll
	o.job.Poll.Active = false
	if out.Handle != "" {
		o.job.Handle = out.Handle
	}
	o.job.LastCode = out.Code
	o.job.LastReason = out.Reason
	o.job.UpdatedAt = time.Now()
	o.persist()

	metrics.ActiveJob.Set(0)
	metrics.JobWaitSeconds.Set(0)

	ev := Event{
		Kind:    kind,
		JobID:   o.job.ID,
		Handle:  out.Handle,
		Outcome: out,
		Poll:    o.job.Poll,
	}
	if kind == EventFatal {
		ev.Message = fatalMessage(out)
		o.log.Error("Job failed", "job_id", o.job.ID, "handle", out.Handle,
			"code", out.Code, "reason", out.Reason, "detail", out.Detail)
	} else {
		ev.Message = "Completed"
		o.log.Info("Job completed", "job_id", o.job.ID, "handle", out.Handle,
			"attempts", poll.Attempts, "total_wait", poll.CumulativeWaitSeconds)
	}
	o.emit(ev)
}

func (o *Orchestrator) accepting() bool {
	return o.state == domain.JobStateSubmitting || o.state == domain.JobStatePolling
}

func (o *Orchestrator) setState(to State, reason string) {
	t := NewTransition(o.state, to, reason)
	if !t.IsValid() {
		o.log.Warn("Unexpected state transition", "from", t.From, "to", t.To, "reason", reason)
	}
	o.state = to
}

// emit never blocks; the oldest event makes room when the buffer is full.
// Callers hold o.mu, so there is a single producer at a time.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
		return
	default:
	}

	select {
	case dropped := <-o.events:
		o.log.Warn("Event buffer full, dropping oldest event", "kind", dropped.Kind)
	default:
	}
	select {
	case o.events <- ev:
	default:
	}
}

func (o *Orchestrator) persist() {
	if o.repo == nil || o.job == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.repo.Save(ctx, o.job); err != nil {
		o.log.Error("Failed to persist job", "job_id", o.job.ID, "error", err)
	}
}
