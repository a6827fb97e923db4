package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vodworks/internal/config"
	"vodworks/internal/metrics"
	"vodworks/internal/model"
	"vodworks/internal/pipeline"
	"vodworks/internal/session"
	"vodworks/internal/workspace"
)

// Worker drains the queue and runs jobs through the pipeline. It
// encapsulates concurrency limits, the dequeue loop, and periodic
// retention cleanup.
type Worker struct {
	cfg    *config.Config
	store  *session.Store
	queue  *Queue
	runner *pipeline.Runner
	ws     *workspace.Manager
	logger *slog.Logger
}

func NewWorker(cfg *config.Config, store *session.Store, queue *Queue, runner *pipeline.Runner, ws *workspace.Manager, logger *slog.Logger) *Worker {
	return &Worker{cfg: cfg, store: store, queue: queue, runner: runner, ws: ws, logger: logger}
}

// Start launches the dequeue loop in the current goroutine. Callers
// typically run this in its own goroutine and keep the process alive.
func (w *Worker) Start(ctx context.Context) {
	dequeueTimeout := time.Duration(w.cfg.Worker.DequeueTimeoutMs) * time.Millisecond
	if dequeueTimeout <= 0 {
		dequeueTimeout = 2 * time.Second
	}

	maxJobs := w.cfg.Worker.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 4
	}
	sem := make(chan struct{}, maxJobs)

	var lastCleanup time.Time
	cleanupInterval := time.Duration(w.cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}

	w.logger.Info("worker_started", "max_concurrent_jobs", maxJobs)

	for {
		if ctx.Err() != nil {
			return
		}

		if w.cfg.Retention.Enabled {
			now := time.Now().UTC()
			if lastCleanup.IsZero() || now.Sub(lastCleanup) >= cleanupInterval {
				CleanupExpired(ctx, w.cfg, w.store, w.ws, w.logger)
				lastCleanup = now
			}
		}

		req, ok, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue_failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		sem <- struct{}{}
		go func(req model.JobRequest) {
			defer func() { <-sem }()
			w.execute(ctx, req)
		}(req)
	}
}

// execute runs one dequeued descriptor end to end.
func (w *Worker) execute(ctx context.Context, req model.JobRequest) {
	// A descriptor is only actionable while its record is still
	// pending. A missing record means the session expired or was
	// removed; any other status means the job was cancelled or this
	// is a redelivered duplicate.
	sess, err := w.store.Get(ctx, req.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			w.logger.Warn("job_dropped", "session_id", req.ID, "reason", "record missing")
		} else {
			w.logger.Error("job_lookup_failed", "session_id", req.ID, "error", err)
		}
		metrics.RecordJob(string(req.Kind), "dropped")
		return
	}
	if sess.Status != session.StatusPending {
		w.logger.Warn("job_dropped", "session_id", req.ID, "reason", "not pending", "status", string(sess.Status))
		metrics.RecordJob(string(req.Kind), "dropped")
		return
	}

	if _, err := w.store.Update(ctx, req.ID, session.StatusProcessing, 0, nil); err != nil {
		w.logger.Error("job_claim_failed", "session_id", req.ID, "error", err)
		return
	}

	w.logger.Info("job_started", "session_id", req.ID, "kind", req.Kind)

	result, runErr := w.runner.Run(ctx, req, func(pct int) {
		// Progress writes must not resurrect a record that was
		// cancelled while the job ran.
		cur, err := w.store.Get(ctx, req.ID)
		if err != nil || cur.Status != session.StatusProcessing {
			return
		}
		_, _ = w.store.Update(ctx, req.ID, session.StatusProcessing, pct, nil)
	})

	w.finish(ctx, req, result, runErr)
}

// finish persists the terminal status, honoring a cancellation that
// raced with the run. A session cancelled mid-flight keeps its
// cancelled status and loses its workspace.
func (w *Worker) finish(ctx context.Context, req model.JobRequest, result session.Result, runErr error) {
	sess, err := w.store.Get(ctx, req.ID)
	if err != nil {
		// Record expired while the job ran. The workspace is either
		// already gone (failure path) or left for the sweep.
		w.logger.Warn("job_finished_without_record", "session_id", req.ID)
		metrics.RecordJob(string(req.Kind), "orphaned")
		return
	}
	if sess.Status == session.StatusCancelled {
		w.logger.Info("job_cancelled_during_run", "session_id", req.ID)
		_ = w.ws.Destroy(req.ID)
		metrics.RecordJob(string(req.Kind), "cancelled")
		return
	}

	if runErr != nil {
		_, _ = w.store.Update(ctx, req.ID, session.StatusFailed, 0, &session.Result{Error: runErr.Error()})
		w.logger.Error("job_failed", "session_id", req.ID, "kind", req.Kind, "error", runErr)
		metrics.RecordJob(string(req.Kind), "failed")
		return
	}

	if _, err := w.store.Update(ctx, req.ID, session.StatusCompleted, 100, &result); err != nil {
		w.logger.Error("job_completion_write_failed", "session_id", req.ID, "error", err)
		return
	}
	w.logger.Info("job_completed", "session_id", req.ID, "kind", req.Kind)
	metrics.RecordJob(string(req.Kind), "completed")
}
