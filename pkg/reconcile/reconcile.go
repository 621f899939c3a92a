// Package reconcile converges document analysis status with the latest job
// outcome. Job rows are the source of truth; document fields are a derived
// view, repaired here whenever the inline update after a terminal job was
// missed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// Reconciler syncs a document's analysis fields with its latest job.
type Reconciler struct {
	store core.Store
	docs  core.DocumentStore
	log   *slog.Logger
	emit  func(core.Event)
	now   func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.log = logger }
}

// WithEmitter sets the event sink.
func WithEmitter(emit func(core.Event)) Option {
	return func(r *Reconciler) { r.emit = emit }
}

func New(store core.Store, docs core.DocumentStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: store,
		docs:  docs,
		log:   slog.Default(),
		emit:  func(core.Event) {},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply pushes a terminal job's outcome onto its document, unless a newer
// job for the same document has been enqueued since; the newer job's outcome
// supersedes this one.
func (r *Reconciler) Apply(ctx context.Context, job *core.Job) error {
	latest, err := r.store.LatestForDocument(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load latest job for %s: %w", job.DocumentID, err)
	}
	if latest == nil || latest.ID != job.ID {
		r.log.Debug("reconcile.superseded", "job_id", job.ID, "document_id", job.DocumentID)
		return nil
	}
	return r.write(ctx, job.DocumentID, job)
}

// Reconcile converges one document with its latest job. Idempotent: calling
// it on an already-converged document writes nothing new of consequence.
func (r *Reconciler) Reconcile(ctx context.Context, documentID string) error {
	doc, err := r.docs.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc == nil {
		return core.ErrDocumentNotFound
	}

	latest, err := r.store.LatestForDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load latest job for %s: %w", documentID, err)
	}
	if latest == nil {
		// Never enqueued; nothing to converge.
		return nil
	}

	desired := core.AnalysisStatusFor(latest.Status)
	if doc.AnalysisStatus == desired {
		return nil
	}
	return r.write(ctx, documentID, latest)
}

// Sweep converges every unconverged document, oldest first, up to limit.
// Returns how many documents were visited.
func (r *Reconciler) Sweep(ctx context.Context, limit int) (int, error) {
	ids, err := r.docs.ListUnconverged(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unconverged: %w", err)
	}

	visited := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return visited, ctx.Err()
		}
		if err := r.Reconcile(ctx, id); err != nil {
			r.log.Warn("reconcile.sweep_item_failed", "document_id", id, "error", err)
			continue
		}
		visited++
	}
	return visited, nil
}

func (r *Reconciler) write(ctx context.Context, documentID string, job *core.Job) error {
	status := core.AnalysisStatusFor(job.Status)

	var err error
	switch job.Status {
	case core.StatusCompleted:
		analyzedAt := r.now()
		if job.CompletedAt != nil {
			analyzedAt = *job.CompletedAt
		}
		err = r.docs.ApplyResult(ctx, documentID, job.Result, analyzedAt)
	case core.StatusFailed:
		err = r.docs.MarkFailed(ctx, documentID)
	default:
		err = r.docs.SetAnalysisStatus(ctx, documentID, status)
	}
	if err != nil {
		return fmt.Errorf("write analysis status %s for %s: %w", status, documentID, err)
	}

	r.log.Info("reconcile.converged",
		"document_id", documentID,
		"job_id", job.ID,
		"status", status,
	)
	r.emit(&core.DocumentReconciled{DocumentID: documentID, Status: status, Timestamp: r.now()})
	return nil
}
