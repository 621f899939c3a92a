// Package analysis provides an asynchronous document analysis pipeline:
// a durable job queue, a single-active worker that drives documents through
// preparation, indexing, summarization and insight extraction with
// primary/fallback provider failover, and a reconciler that keeps document
// status converged with job outcomes.
//
// This is the main package embedders should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	// Create storage
//	db, _ := gorm.Open(sqlite.Open("analysis.db"), &gorm.Config{})
//	store := analysis.NewGormStore(db)
//	docs := analysis.NewGormDocumentStore(db)
//	store.Migrate(context.Background())
//
//	// Build the pipeline
//	strategy := analysis.NewFailover(primary, fallback)
//	rec := analysis.NewReconciler(store, docs)
//	exec := analysis.NewExecutor(store, docs, strategy)
//	w := analysis.NewWorker(store, exec, worker.WithReconciler(rec))
//	svc := analysis.NewService(store, docs, rec, service.WithWaker(w))
//
//	// Run the worker and enqueue a document
//	go w.Start(ctx)
//	svc.Enqueue(ctx, service.EnqueueRequest{DocumentID: "doc-1"})
package analysis

import (
	"gorm.io/gorm"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/executor"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/reconcile"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/schedule"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/service"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/storage"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/validate"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/worker"
)

// Type aliases re-exporting the package API.
type (
	// Job is one durable attempt to analyze a document.
	Job = core.Job

	// JobStatus represents the current state of an analysis job.
	JobStatus = core.JobStatus

	// Step is one ordered phase of document analysis.
	Step = core.Step

	// Priority orders queued jobs; higher runs first.
	Priority = core.Priority

	// Document is the pipeline's view of an uploaded document.
	Document = core.Document

	// AnalysisStatus is the analysis state mirrored onto the document.
	AnalysisStatus = core.AnalysisStatus

	// Result is the structured analysis payload of a completed job.
	Result = core.Result

	// Provenance records which provider produced a job's result.
	Provenance = core.Provenance

	// Usage is the token accounting reported by the provider.
	Usage = core.Usage

	// Store defines the persistence layer for analysis jobs.
	Store = core.Store

	// DocumentStore is the pipeline's write surface onto documents.
	DocumentStore = core.DocumentStore

	// Event is the interface for all pipeline events.
	Event = core.Event

	// JobEnqueued is emitted when a job is accepted into the queue.
	JobEnqueued = core.JobEnqueued

	// JobStarted is emitted when the worker claims a job.
	JobStarted = core.JobStarted

	// StepCompleted is emitted after each analysis step succeeds.
	StepCompleted = core.StepCompleted

	// JobCompleted is emitted when a job completes successfully.
	JobCompleted = core.JobCompleted

	// JobFailed is emitted when a job fails permanently.
	JobFailed = core.JobFailed

	// JobRetrying is emitted when a job is requeued for another attempt.
	JobRetrying = core.JobRetrying

	// DocumentReconciled is emitted when a document's analysis fields are
	// synced with its latest job.
	DocumentReconciled = core.DocumentReconciled

	// Provider is the four-operation inference provider contract.
	Provider = provider.Provider

	// Failover is the explicit primary-then-fallback provider strategy.
	Failover = provider.Failover

	// TransientError is a retryable provider failure.
	TransientError = provider.TransientError

	// PermanentError is a non-retryable provider failure.
	PermanentError = provider.PermanentError

	// Executor drives a claimed job through the analysis steps.
	Executor = executor.Executor

	// Worker claims queued jobs and runs them one at a time.
	Worker = worker.Worker

	// Reconciler converges document status with the latest job outcome.
	Reconciler = reconcile.Reconciler

	// Sweeper runs the reconciliation sweep on a schedule.
	Sweeper = reconcile.Sweeper

	// Schedule defines when a recurring task runs next.
	Schedule = schedule.Schedule

	// Service is the operation surface of the pipeline.
	Service = service.Service

	// EnqueueRequest carries the parameters of an enqueue operation.
	EnqueueRequest = service.EnqueueRequest

	// StatusReport is the job status view returned to callers.
	StatusReport = service.StatusReport

	// Stats is the queue-depth view per job status.
	Stats = service.Stats

	// Emitter fans pipeline events out to subscribers.
	Emitter = service.Emitter

	// GormStore implements Store using GORM.
	GormStore = storage.GormStore

	// GormDocumentStore implements DocumentStore using GORM.
	GormDocumentStore = storage.GormDocumentStore
)

// Job status constants
const (
	StatusQueued     = core.StatusQueued
	StatusProcessing = core.StatusProcessing
	StatusCompleted  = core.StatusCompleted
	StatusFailed     = core.StatusFailed
)

// Step constants
const (
	StepPreparing          = core.StepPreparing
	StepIndexing           = core.StepIndexing
	StepSummarizing        = core.StepSummarizing
	StepExtractingInsights = core.StepExtractingInsights
)

// Priority constants
const (
	PriorityNormal = core.PriorityNormal
	PriorityHigh   = core.PriorityHigh
)

// Document analysis status constants
const (
	AnalysisPending    = core.AnalysisPending
	AnalysisProcessing = core.AnalysisProcessing
	AnalysisCompleted  = core.AnalysisCompleted
	AnalysisFailed     = core.AnalysisFailed
)

// Provenance constants
const (
	ProvenancePrimary  = core.ProvenancePrimary
	ProvenanceFallback = core.ProvenanceFallback
)

// Limits
const (
	MaxDocumentIDLength   = validate.MaxDocumentIDLength
	MaxErrorMessageLength = validate.MaxErrorMessageLength
	MaxAttemptsLimit      = validate.MaxAttemptsLimit
)

// Error variables
var (
	ErrDocumentIDRequired = core.ErrDocumentIDRequired
	ErrDocumentIDTooLong  = core.ErrDocumentIDTooLong
	ErrInvalidDocumentID  = core.ErrInvalidDocumentID
	ErrInvalidPriority    = core.ErrInvalidPriority
	ErrDocumentNotFound   = core.ErrDocumentNotFound
	ErrNoJobForDocument   = core.ErrNoJobForDocument
	ErrAnalysisInProgress = core.ErrAnalysisInProgress
	ErrRetryNotAllowed    = core.ErrRetryNotAllowed
)

// NewGormStore creates a GORM-backed job store.
func NewGormStore(db *gorm.DB) *GormStore {
	return storage.NewGormStore(db)
}

// NewGormDocumentStore creates a GORM-backed document store.
func NewGormDocumentStore(db *gorm.DB) *GormDocumentStore {
	return storage.NewGormDocumentStore(db)
}

// NewFailover creates a failover strategy over a primary and an optional
// fallback provider.
func NewFailover(primary, fallback Provider, opts ...provider.FailoverOption) *Failover {
	return provider.NewFailover(primary, fallback, opts...)
}

// NewExecutor creates a step executor.
func NewExecutor(store Store, docs DocumentStore, strategy *Failover, opts ...executor.Option) *Executor {
	return executor.New(store, docs, strategy, opts...)
}

// NewWorker creates the single-active worker.
func NewWorker(store Store, exec *Executor, opts ...worker.Option) *Worker {
	return worker.New(store, exec, opts...)
}

// NewReconciler creates a document status reconciler.
func NewReconciler(store Store, docs DocumentStore, opts ...reconcile.Option) *Reconciler {
	return reconcile.New(store, docs, opts...)
}

// NewService creates the pipeline's operation surface.
func NewService(store Store, docs DocumentStore, rec *Reconciler, opts ...service.Option) *Service {
	return service.New(store, docs, rec, opts...)
}

// Transient wraps a provider error as retryable.
func Transient(err error) error {
	return provider.Transient(err)
}

// Permanent wraps a provider error as non-retryable.
func Permanent(err error) error {
	return provider.Permanent(err)
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage.
func SanitizeErrorMessage(msg string) string {
	return validate.SanitizeErrorMessage(msg)
}
