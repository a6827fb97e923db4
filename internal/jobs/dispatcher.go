package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vodworks/internal/model"
	"vodworks/internal/pipeline"
	"vodworks/internal/session"
)

// Dispatcher is the submission side of the job system. Asynchronous
// submissions create a pending session record and enqueue a
// descriptor; synchronous submissions run the pipeline inline and
// leave no durable record behind.
type Dispatcher struct {
	store  *session.Store
	queue  *Queue
	runner *pipeline.Runner
	logger *slog.Logger
}

func NewDispatcher(store *session.Store, queue *Queue, runner *pipeline.Runner, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, queue: queue, runner: runner, logger: logger}
}

// NewID returns a fresh job id. Time-ordered ids make session listings
// and log correlation easier to read.
func NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// Enqueue registers req for background execution and returns its id.
// The pending record is created before the descriptor is pushed so a
// worker can never observe a descriptor without its record.
func (d *Dispatcher) Enqueue(ctx context.Context, req model.JobRequest) (string, error) {
	if !req.Kind.Valid() {
		return "", fmt.Errorf("unknown job kind %q", req.Kind)
	}
	if req.ID == "" {
		req.ID = NewID()
	}

	if _, err := d.store.Create(ctx, req.ID, req.Kind, map[string]string{"url": req.URL}); err != nil {
		return "", err
	}

	if err := d.queue.Enqueue(ctx, req); err != nil {
		// Roll the record back so a failed submission is invisible.
		_ = d.store.Delete(ctx, req.ID)
		return "", err
	}

	d.logger.Info("job_enqueued", "session_id", req.ID, "kind", req.Kind)
	return req.ID, nil
}

// RunInline executes req synchronously in the caller's context and
// returns the result directly. No session record is created, so the
// job is invisible to status, cancel, and retrieval endpoints; its
// workspace still exists afterwards and is collected by the sweep.
func (d *Dispatcher) RunInline(ctx context.Context, req model.JobRequest) (string, session.Result, error) {
	if req.ID == "" {
		req.ID = NewID()
	}
	result, err := d.runner.Run(ctx, req, nil)
	if err != nil {
		return req.ID, session.Result{}, fmt.Errorf("job execution: %w", err)
	}
	return req.ID, result, nil
}
