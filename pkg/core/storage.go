package core

import (
	"context"
	"time"
)

// Store defines the persistence layer for analysis jobs. The job row is the
// single source of truth: only the worker and executor mutate claimed jobs.
type Store interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Enqueue persists a new queued job.
	Enqueue(ctx context.Context, job *Job) error

	// ClaimNext atomically transitions the next eligible queued job to
	// processing and sets StartedAt. Eligibility is highest priority first,
	// then oldest CreatedAt, skipping documents that already have a job in
	// processing. Returns (nil, nil) when nothing is claimable.
	ClaimNext(ctx context.Context) (*Job, error)

	// UpdateStep records step completion on a processing job: the next step
	// to run, the progress checkpoint reached, and the serialized step
	// state. Progress never decreases.
	UpdateStep(ctx context.Context, jobID string, step Step, progress int, state []byte) error

	// Requeue returns a processing job to the queue for another attempt at
	// its current step. runAt delays eligibility when backoff is configured.
	// Any stored error message is cleared: only failed jobs carry one.
	Requeue(ctx context.Context, jobID string, attempts int, runAt *time.Time) error

	// RequeueAbandoned returns every processing job to the queue, keeping
	// step, progress and checkpoint state. With a single active worker, a
	// processing row observed at startup can only be a leftover from a
	// crash mid-job.
	RequeueAbandoned(ctx context.Context) (int64, error)

	// Complete marks a processing job completed with its result payload.
	Complete(ctx context.Context, jobID string, result []byte, provenance Provenance) error

	// Fail marks a processing job failed with a human-readable message.
	Fail(ctx context.Context, jobID string, attempts int, errMsg string) error

	// GetJob retrieves a job by ID; (nil, nil) when absent.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// LatestForDocument returns the most recently created job for a
	// document; (nil, nil) when the document has never been enqueued.
	LatestForDocument(ctx context.Context, documentID string) (*Job, error)

	// HasActiveJob reports whether the document has a queued or processing job.
	HasActiveJob(ctx context.Context, documentID string) (bool, error)

	// CountByStatus returns the number of jobs per status.
	CountByStatus(ctx context.Context) (map[JobStatus]int64, error)
}

// DocumentStore is the pipeline's write surface onto document records. The
// reconciler is the only component allowed to write the analysis fields.
type DocumentStore interface {
	// Get retrieves a document by ID; (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Document, error)

	// SetAnalysisStatus updates only the status field.
	SetAnalysisStatus(ctx context.Context, id string, status AnalysisStatus) error

	// ApplyResult writes the terminal success state: result payload,
	// analyzed timestamp and completed status.
	ApplyResult(ctx context.Context, id string, result []byte, analyzedAt time.Time) error

	// MarkFailed writes the terminal failure state.
	MarkFailed(ctx context.Context, id string) error

	// ListUnconverged returns IDs of documents still pending or processing,
	// oldest first, for the reconciliation sweep.
	ListUnconverged(ctx context.Context, limit int) ([]string, error)
}
