package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/executor"
)

// Reconciler syncs a document's analysis fields after its job reaches a
// terminal state.
type Reconciler interface {
	Apply(ctx context.Context, job *core.Job) error
}

// Worker claims queued jobs and runs them through the executor, one job at a
// time. A single active worker is the concurrency model: inference calls are
// the bottleneck, not the queue.
type Worker struct {
	store      core.Store
	exec       *executor.Executor
	reconciler Reconciler
	config     Config
	log        *slog.Logger
	emit       func(core.Event)

	// wake is signalled on enqueue so a fresh job does not wait out the
	// poll interval. Capacity 1: coalescing signals is fine, the drain
	// loop claims until the queue is empty.
	wake chan struct{}
}

func New(store core.Store, exec *executor.Executor, opts ...Option) *Worker {
	w := &Worker{
		store: store,
		exec:  exec,
		config: Config{
			PollInterval: time.Second,
			StorageRetry: DefaultRetryConfig(),
			ClaimRetry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    500 * time.Millisecond,
				MaxBackoff:        10 * time.Second,
				BackoffMultiplier: 2.0,
				JitterFraction:    0.2,
			},
		},
		log:  slog.Default(),
		emit: func(core.Event) {},
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify wakes the worker without blocking. Safe to call from any goroutine.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start begins processing jobs. Blocks until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.recoverAbandoned(ctx)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
		case <-ticker.C:
		}
		w.drain(ctx)
	}
}

// recoverAbandoned requeues jobs left in processing by a previous run.
// The worker is the only claimer, so any processing row at startup is an
// interrupted job; its checkpoint lets it resume at the step it was on.
func (w *Worker) recoverAbandoned(ctx context.Context) {
	n, err := w.store.RequeueAbandoned(ctx)
	if err != nil {
		w.log.Error("worker.recover_failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Warn("worker.recovered_abandoned", "count", n)
	}
}

// drain claims and processes jobs until the queue is empty or the context is
// cancelled.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.claimWithRetry(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				w.log.Error("worker.claim_failed", "error", err)
			}
			return
		}
		if job == nil {
			return
		}
		w.processJob(ctx, job)
	}
}

// claimWithRetry attempts to claim a job with exponential backoff on failure.
func (w *Worker) claimWithRetry(ctx context.Context) (*core.Job, error) {
	var job *core.Job
	err := retryWithBackoff(ctx, w.config.ClaimRetry, func() error {
		var claimErr error
		job, claimErr = w.store.ClaimNext(ctx)
		return claimErr
	})
	return job, err
}

func (w *Worker) processJob(ctx context.Context, job *core.Job) {
	start := time.Now()

	w.log.Info("worker.job_started",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"step", job.CurrentStep,
		"attempt", job.Attempts,
		"priority", job.Priority.String(),
	)
	w.emit(&core.JobStarted{Job: job, Timestamp: start})

	done, err := w.runJob(ctx, job)
	if err != nil {
		// Executor errors are storage failures or panics; the job row may
		// still say processing, so finalize it here.
		w.log.Error("worker.job_aborted", "job_id", job.ID, "error", err)
		w.failWithRetry(ctx, job, err)
		done, _ = w.store.GetJob(ctx, job.ID)
	}

	if done == nil {
		return
	}

	w.log.Info("worker.job_done",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"status", done.Status,
		"attempts", done.Attempts,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if done.Status.Terminal() && w.reconciler != nil {
		if err := w.reconciler.Apply(ctx, done); err != nil {
			// The sweep converges the document later.
			w.log.Warn("worker.reconcile_failed",
				"job_id", done.ID, "document_id", done.DocumentID, "error", err)
		}
	}
}

// runJob executes the job with panic recovery at the job boundary, so a
// defective document cannot take the worker down.
func (w *Worker) runJob(ctx context.Context, job *core.Job) (done *core.Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			done = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.exec.Run(ctx, job)
}

// failWithRetry marks a job as failed with retry on transient storage failures.
func (w *Worker) failWithRetry(ctx context.Context, job *core.Job, cause error) {
	err := retryWithBackoff(ctx, w.config.StorageRetry, func() error {
		failErr := w.store.Fail(ctx, job.ID, job.Attempts, cause.Error())
		if errors.Is(failErr, core.ErrJobNotProcessing) {
			// Already finalized or requeued before the abort surfaced.
			return nil
		}
		return failErr
	})
	if err != nil {
		w.log.Error("worker.fail_write_failed", "job_id", job.ID, "error", err)
		return
	}
	w.emit(&core.JobFailed{Job: job, Error: cause, Timestamp: time.Now()})
}
