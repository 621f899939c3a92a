// Package executor runs a claimed analysis job through the ordered pipeline
// steps, persisting a checkpoint after each one and routing failures to the
// retry or fail path according to the error taxonomy.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

// RetryDelayFunc computes the delay before a requeued job becomes claimable
// again. attempt is the attempt count after the increment.
type RetryDelayFunc func(attempt int) time.Duration

// DefaultRetryDelay is capped exponential backoff: 30s, 60s, 120s, ...
// up to 10 minutes.
func DefaultRetryDelay(attempt int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return d
}

// Executor drives one job at a time through the analysis steps.
type Executor struct {
	store      core.Store
	docs       core.DocumentStore
	strategy   *provider.Failover
	retryDelay RetryDelayFunc
	log        *slog.Logger
	emit       func(core.Event)
	now        func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetryDelay sets the backoff policy for requeued jobs. A function
// returning zero requeues with immediate eligibility.
func WithRetryDelay(fn RetryDelayFunc) Option {
	return func(e *Executor) { e.retryDelay = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.log = logger }
}

// WithEmitter sets the event sink.
func WithEmitter(emit func(core.Event)) Option {
	return func(e *Executor) { e.emit = emit }
}

// withClock overrides time for tests.
func withClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func New(store core.Store, docs core.DocumentStore, strategy *provider.Failover, opts ...Option) *Executor {
	e := &Executor{
		store:      store,
		docs:       docs,
		strategy:   strategy,
		retryDelay: DefaultRetryDelay,
		log:        slog.Default(),
		emit:       func(core.Event) {},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes job from its current step to a terminal or requeued state and
// returns the reloaded job row. The returned error is non-nil only for
// storage failures; provider failures are absorbed into the job's state.
func (e *Executor) Run(ctx context.Context, job *core.Job) (*core.Job, error) {
	start := e.now()

	doc, err := e.docs.Get(ctx, job.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", job.DocumentID, err)
	}
	if doc == nil {
		return e.fail(ctx, job, job.Attempts, fmt.Errorf("document %s no longer exists", job.DocumentID))
	}

	state, err := decodeStepState(job.StepState)
	if err != nil {
		// Corrupt checkpoint: restart the pipeline from the first step.
		e.log.Warn("executor.state_corrupt", "job_id", job.ID, "error", err)
		state = stepState{}
		job.CurrentStep = core.StepPreparing
	}

	step := job.CurrentStep
	if !step.Valid() {
		step = core.StepPreparing
	}

	for {
		served, runErr := e.runStep(ctx, step, doc, &state)
		if runErr != nil {
			return e.dispatchFailure(ctx, job, step, runErr)
		}
		if served == core.ProvenanceFallback {
			state.UsedFallback = true
		}

		e.emit(&core.StepCompleted{Job: job, Step: step, Served: served, Timestamp: e.now()})

		// The last step records its own checkpoint so the row shows every
		// progress value before Complete writes 100.
		next, ok := step.Next()
		target := step
		if ok {
			target = next
		}

		encoded, err := state.encode()
		if err != nil {
			return nil, fmt.Errorf("encode step state: %w", err)
		}
		if err := e.store.UpdateStep(ctx, job.ID, target, step.Progress(), encoded); err != nil {
			return nil, fmt.Errorf("record step %s: %w", step, err)
		}
		job.CurrentStep = target
		job.StepProgress = step.Progress()

		e.log.Info("executor.step_done",
			"job_id", job.ID,
			"document_id", job.DocumentID,
			"step", step,
			"progress", step.Progress(),
			"served_by", served,
		)

		if !ok {
			return e.complete(ctx, job, state, start)
		}
		step = next
	}
}

// runStep executes one pipeline step through the failover strategy, reusing
// checkpointed artifacts from earlier steps.
func (e *Executor) runStep(ctx context.Context, step core.Step, doc *core.Document, state *stepState) (core.Provenance, error) {
	switch step {
	case core.StepPreparing:
		art, served, err := e.strategy.Prepare(ctx, doc)
		if err != nil {
			return "", err
		}
		state.Artifact = &art
		return served, nil

	case core.StepIndexing:
		if state.Artifact == nil {
			return "", provider.Permanent(fmt.Errorf("no prepared artifact for document %s", doc.ID))
		}
		h, served, err := e.strategy.Index(ctx, *state.Artifact)
		if err != nil {
			return "", err
		}
		state.Handle = &h
		return served, nil

	case core.StepSummarizing:
		if state.Handle == nil {
			return "", provider.Permanent(fmt.Errorf("no index handle for document %s", doc.ID))
		}
		s, served, err := e.strategy.Summarize(ctx, *state.Handle)
		if err != nil {
			return "", err
		}
		state.Summary = &s
		return served, nil

	case core.StepExtractingInsights:
		if state.Handle == nil || state.Summary == nil {
			return "", provider.Permanent(fmt.Errorf("incomplete pipeline state for document %s", doc.ID))
		}
		ins, served, err := e.strategy.ExtractInsights(ctx, *state.Handle)
		if err != nil {
			return "", err
		}
		state.Insights = &ins
		return served, nil

	default:
		return "", provider.Permanent(fmt.Errorf("unknown step %q", step))
	}
}

// dispatchFailure routes a step error: permanent failures and exhausted
// retries finalize the job, transient failures requeue it with backoff.
func (e *Executor) dispatchFailure(ctx context.Context, job *core.Job, step core.Step, runErr error) (*core.Job, error) {
	if provider.IsPermanent(runErr) {
		e.log.Warn("executor.step_permanent",
			"job_id", job.ID, "document_id", job.DocumentID, "step", step, "error", runErr)
		return e.fail(ctx, job, job.Attempts, runErr)
	}

	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		e.log.Warn("executor.retries_exhausted",
			"job_id", job.ID, "document_id", job.DocumentID, "step", step,
			"attempts", attempts, "error", runErr)
		return e.fail(ctx, job, attempts, runErr)
	}

	var runAt *time.Time
	nextRun := e.now()
	if delay := e.retryDelay(attempts); delay > 0 {
		nextRun = nextRun.Add(delay)
		runAt = &nextRun
	}

	e.log.Warn("executor.step_retrying",
		"job_id", job.ID, "document_id", job.DocumentID, "step", step,
		"attempt", attempts, "max_attempts", job.MaxAttempts, "error", runErr)

	if err := e.store.Requeue(ctx, job.ID, attempts, runAt); err != nil {
		return nil, fmt.Errorf("requeue job %s: %w", job.ID, err)
	}
	e.emit(&core.JobRetrying{Job: job, Attempt: attempts, Error: runErr, NextRunAt: nextRun, Timestamp: e.now()})
	return e.reload(ctx, job.ID)
}

func (e *Executor) complete(ctx context.Context, job *core.Job, state stepState, start time.Time) (*core.Job, error) {
	res := core.Result{
		Summary:        state.Summary.Text,
		Insights:       state.Insights.Text,
		Classification: state.Insights.Classification,
		RiskLevel:      state.Insights.RiskLevel,
		Provenance:     state.provenance(),
		Model:          state.Insights.Model,
		Usage:          state.Summary.Usage.Add(state.Insights.Usage),
	}
	encoded, err := res.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if err := e.store.Complete(ctx, job.ID, encoded, res.Provenance); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	e.log.Info("executor.job_completed",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"provenance", res.Provenance,
		"total_tokens", res.Usage.TotalTokens,
		"elapsed_ms", e.now().Sub(start).Milliseconds(),
	)
	e.emit(&core.JobCompleted{Job: job, Duration: e.now().Sub(start), Timestamp: e.now()})
	return e.reload(ctx, job.ID)
}

func (e *Executor) fail(ctx context.Context, job *core.Job, attempts int, cause error) (*core.Job, error) {
	if err := e.store.Fail(ctx, job.ID, attempts, cause.Error()); err != nil {
		return nil, fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	e.log.Warn("executor.job_failed",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"attempts", attempts,
		"error", cause,
	)
	e.emit(&core.JobFailed{Job: job, Error: cause, Timestamp: e.now()})
	return e.reload(ctx, job.ID)
}

func (e *Executor) reload(ctx context.Context, jobID string) (*core.Job, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("reload job %s: %w", jobID, err)
	}
	return job, nil
}
