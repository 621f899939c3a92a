// Package worker provides the single-active job processor for the analysis
// pipeline.
package worker

import (
	"log/slog"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// Config holds worker configuration.
type Config struct {
	// PollInterval bounds how long a queued job waits when no wake signal
	// arrives. Default: 1s.
	PollInterval time.Duration

	// StorageRetry governs retries of claim/finalize storage calls.
	StorageRetry RetryConfig

	// ClaimRetry governs retries of the claim query. Longer backoff than
	// StorageRetry so a database outage is not hammered.
	ClaimRetry RetryConfig
}

// Option configures a Worker.
type Option func(*Worker)

// WithPollInterval sets the queue poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.config.PollInterval = d }
}

// WithStorageRetry sets the retry policy for finalize storage calls.
func WithStorageRetry(cfg RetryConfig) Option {
	return func(w *Worker) { w.config.StorageRetry = cfg }
}

// WithClaimRetry sets the retry policy for the claim query.
func WithClaimRetry(cfg RetryConfig) Option {
	return func(w *Worker) { w.config.ClaimRetry = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.log = logger }
}

// WithReconciler sets the reconciler invoked after each terminal job.
func WithReconciler(r Reconciler) Option {
	return func(w *Worker) { w.reconciler = r }
}

// WithEmitter sets the event sink.
func WithEmitter(emit func(core.Event)) Option {
	return func(w *Worker) { w.emit = emit }
}
