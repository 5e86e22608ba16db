// Package task tracks background jobs. Callers submit a job and later poll
// its handle; they never see how or where the job runs.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	// StatusUnknown is reported for handles that were never submitted or
	// whose record expired.
	StatusUnknown Status = "unknown"
)

const KindSummarize = "summarize"

var ErrEmptyHandle = errors.New("task handle is empty")

// ErrSubjectGone is returned by an executor whose subject was deleted while
// the job ran. The executor forgets the task instead of reporting it.
var ErrSubjectGone = errors.New("task subject no longer exists")

type Handle string

// Job is the message handed to the executing worker.
type Job struct {
	Handle    Handle    `json:"handle"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Submitter string    `json:"submitter"`
	CreatedAt time.Time `json:"created_at"`
}

type Result struct {
	Status    Status    `json:"status"`
	Value     string    `json:"value,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusStore persists task results.
type StatusStore interface {
	Save(ctx context.Context, handle Handle, result Result) error
	Load(ctx context.Context, handle Handle) (Result, bool, error)
	Remove(ctx context.Context, handle Handle) error
}

// Dispatcher hands a job to whatever executes it.
type Dispatcher interface {
	Publish(ctx context.Context, payload any) error
}

type Registry struct {
	store      StatusStore
	dispatcher Dispatcher
	now        func() time.Time
}

func NewRegistry(store StatusStore, dispatcher Dispatcher) *Registry {
	return &Registry{store: store, dispatcher: dispatcher, now: time.Now}
}

// HandleFor is the handle of the job of kind acting on subject. Submitting
// the same kind and subject again replaces the earlier record.
func HandleFor(kind, subject string) Handle {
	return Handle(kind + ":" + subject)
}

// Submit records the job as pending and dispatches it without waiting for
// it to run.
func (r *Registry) Submit(ctx context.Context, kind, subject, submitter string) (Handle, error) {
	handle := HandleFor(kind, subject)
	now := r.now()
	if err := r.store.Save(ctx, handle, Result{Status: StatusPending, UpdatedAt: now}); err != nil {
		return "", fmt.Errorf("record task failed: %w", err)
	}

	job := Job{Handle: handle, Kind: kind, Subject: subject, Submitter: submitter, CreatedAt: now}
	if err := r.dispatcher.Publish(ctx, job); err != nil {
		_ = r.store.Save(ctx, handle, Result{Status: StatusFailed, Error: err.Error(), UpdatedAt: r.now()})
		return "", fmt.Errorf("dispatch task failed: %w", err)
	}
	return handle, nil
}

func (r *Registry) Poll(ctx context.Context, handle Handle) (Result, error) {
	if handle == "" {
		return Result{}, ErrEmptyHandle
	}
	result, ok, err := r.store.Load(ctx, handle)
	if err != nil {
		return Result{}, fmt.Errorf("poll task failed: %w", err)
	}
	if !ok {
		return Result{Status: StatusUnknown}, nil
	}
	return result, nil
}

// Complete is called by the executor on success.
func (r *Registry) Complete(ctx context.Context, handle Handle, value string) error {
	return r.store.Save(ctx, handle, Result{Status: StatusDone, Value: value, UpdatedAt: r.now()})
}

// Fail is called by the executor on error. Failed tasks are not retried.
func (r *Registry) Fail(ctx context.Context, handle Handle, cause error) error {
	return r.store.Save(ctx, handle, Result{Status: StatusFailed, Error: cause.Error(), UpdatedAt: r.now()})
}

// Forget drops a consumed result.
func (r *Registry) Forget(ctx context.Context, handle Handle) error {
	return r.store.Remove(ctx, handle)
}
