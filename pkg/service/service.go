// Package service exposes the analysis pipeline's operation surface:
// enqueue, status lookup, retry and queue statistics. It is the only layer
// the portal's request handlers talk to.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/reconcile"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/validate"
)

// DefaultMaxAttempts is the retry budget for new jobs.
const DefaultMaxAttempts = 3

// Waker wakes the worker after an enqueue so a fresh job does not wait out
// the poll interval.
type Waker interface {
	Notify()
}

// Service is the operation surface of the analysis pipeline.
type Service struct {
	store   core.Store
	docs    core.DocumentStore
	rec     *reconcile.Reconciler
	waker   Waker
	emitter *Emitter
	log     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWaker sets the worker wake hook.
func WithWaker(w Waker) Option {
	return func(s *Service) { s.waker = w }
}

// WithEmitter sets the shared event emitter.
func WithEmitter(e *Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.log = logger }
}

func New(store core.Store, docs core.DocumentStore, rec *reconcile.Reconciler, opts ...Option) *Service {
	s := &Service{
		store:   store,
		docs:    docs,
		rec:     rec,
		emitter: NewEmitter(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns a channel of pipeline events. Callers must Unsubscribe.
func (s *Service) Events() <-chan core.Event {
	return s.emitter.Events()
}

// Unsubscribe removes a subscriber channel created by Events().
func (s *Service) Unsubscribe(ch <-chan core.Event) {
	s.emitter.Unsubscribe(ch)
}

// Emitter exposes the shared emitter so the executor, worker and reconciler
// publish onto the same stream.
func (s *Service) Emitter() *Emitter {
	return s.emitter
}

// EnqueueRequest carries the parameters of an enqueue operation.
type EnqueueRequest struct {
	DocumentID  string
	OwnerType   string
	OwnerID     string
	Priority    string // "", "normal" or "high"
	MaxAttempts int    // 0 means DefaultMaxAttempts
}

// Enqueue validates the request and creates a queued analysis job for the
// document. A document with a queued or processing job is rejected; retry
// after the active job settles.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*core.Job, error) {
	if err := validate.DocumentID(req.DocumentID); err != nil {
		return nil, err
	}
	if err := validate.OwnerType(req.OwnerType); err != nil {
		return nil, err
	}
	priority, err := core.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.Get(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", req.DocumentID, err)
	}
	if doc == nil {
		return nil, core.ErrDocumentNotFound
	}

	active, err := s.store.HasActiveJob(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("check active job for %s: %w", req.DocumentID, err)
	}
	if active {
		return nil, core.ErrAnalysisInProgress
	}

	job := &core.Job{
		ID:          uuid.New().String(),
		DocumentID:  req.DocumentID,
		OwnerType:   req.OwnerType,
		OwnerID:     req.OwnerID,
		Status:      core.StatusQueued,
		CurrentStep: core.StepPreparing,
		Priority:    priority,
		MaxAttempts: validate.ClampAttempts(req.MaxAttempts, DefaultMaxAttempts),
	}
	if err := s.store.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job for %s: %w", req.DocumentID, err)
	}

	if err := s.docs.SetAnalysisStatus(ctx, req.DocumentID, core.AnalysisPending); err != nil {
		// The sweep converges the document later; the job is already durable.
		s.log.Warn("service.status_write_failed",
			"document_id", req.DocumentID, "error", err)
	}

	s.log.Info("service.enqueued",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"priority", job.Priority.String(),
		"owner_type", job.OwnerType,
	)
	s.emitter.Emit(&core.JobEnqueued{Job: job, Timestamp: time.Now()})
	if s.waker != nil {
		s.waker.Notify()
	}
	return job, nil
}

// StatusReport is the job status view returned to callers.
type StatusReport struct {
	JobID          string              `json:"job_id"`
	DocumentID     string              `json:"document_id"`
	Status         core.JobStatus      `json:"status"`
	Step           core.Step           `json:"step"`
	Progress       int                 `json:"progress"`
	Attempts       int                 `json:"attempts"`
	MaxAttempts    int                 `json:"max_attempts"`
	Priority       string              `json:"priority"`
	DocumentStatus core.AnalysisStatus `json:"document_status"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	Result         *core.Result        `json:"result,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
}

// JobStatus reports the latest job for a document. When the job is terminal
// but the document still shows a stale status, the lookup repairs it before
// reporting.
func (s *Service) JobStatus(ctx context.Context, documentID string) (StatusReport, error) {
	if err := validate.DocumentID(documentID); err != nil {
		return StatusReport{}, err
	}

	job, err := s.store.LatestForDocument(ctx, documentID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("load latest job for %s: %w", documentID, err)
	}
	if job == nil {
		return StatusReport{}, core.ErrNoJobForDocument
	}

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return StatusReport{}, fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc == nil {
		return StatusReport{}, core.ErrDocumentNotFound
	}

	if job.Status.Terminal() && doc.AnalysisStatus != core.AnalysisStatusFor(job.Status) {
		if err := s.rec.Reconcile(ctx, documentID); err != nil {
			s.log.Warn("service.status_repair_failed",
				"document_id", documentID, "error", err)
		} else {
			doc, err = s.docs.Get(ctx, documentID)
			if err != nil || doc == nil {
				return StatusReport{}, fmt.Errorf("reload document %s: %w", documentID, err)
			}
		}
	}

	report := StatusReport{
		JobID:          job.ID,
		DocumentID:     job.DocumentID,
		Status:         job.Status,
		Step:           job.CurrentStep,
		Progress:       job.StepProgress,
		Attempts:       job.Attempts,
		MaxAttempts:    job.MaxAttempts,
		Priority:       job.Priority.String(),
		DocumentStatus: doc.AnalysisStatus,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
	if job.Status == core.StatusCompleted && len(job.Result) > 0 {
		if res, err := core.DecodeResult(job.Result); err == nil {
			report.Result = &res
		}
	}
	return report, nil
}

// Retry enqueues a fresh job for a document whose latest job failed. The new
// job starts from the first step with a full retry budget; the failed job
// remains as audit trail.
func (s *Service) Retry(ctx context.Context, documentID string) (*core.Job, error) {
	if err := validate.DocumentID(documentID); err != nil {
		return nil, err
	}

	latest, err := s.store.LatestForDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load latest job for %s: %w", documentID, err)
	}
	if latest == nil {
		return nil, core.ErrNoJobForDocument
	}
	if latest.Status != core.StatusFailed {
		return nil, core.ErrRetryNotAllowed
	}

	job := &core.Job{
		ID:          uuid.New().String(),
		DocumentID:  documentID,
		OwnerType:   latest.OwnerType,
		OwnerID:     latest.OwnerID,
		Status:      core.StatusQueued,
		CurrentStep: core.StepPreparing,
		Priority:    latest.Priority,
		MaxAttempts: latest.MaxAttempts,
	}
	if err := s.store.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue retry job for %s: %w", documentID, err)
	}

	if err := s.docs.SetAnalysisStatus(ctx, documentID, core.AnalysisPending); err != nil {
		s.log.Warn("service.status_write_failed",
			"document_id", documentID, "error", err)
	}

	s.log.Info("service.retry_enqueued",
		"job_id", job.ID,
		"document_id", documentID,
		"superseded_job_id", latest.ID,
	)
	s.emitter.Emit(&core.JobEnqueued{Job: job, Timestamp: time.Now()})
	if s.waker != nil {
		s.waker.Notify()
	}
	return job, nil
}

// Stats is the queue-depth view per job status.
type Stats struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// Stats reports job counts by status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count jobs: %w", err)
	}
	return Stats{
		Queued:     counts[core.StatusQueued],
		Processing: counts[core.StatusProcessing],
		Completed:  counts[core.StatusCompleted],
		Failed:     counts[core.StatusFailed],
	}, nil
}
