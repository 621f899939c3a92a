package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// Failover is the explicit two-stage provider strategy: every operation goes
// to the primary first, and only a transient primary failure is forwarded to
// the fallback, at most once per step invocation. A permanent failure is
// never forwarded; the fallback cannot fix a malformed document.
type Failover struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// FailoverOption configures a Failover.
type FailoverOption func(*Failover)

// WithCallTimeout bounds each provider call; a call that exceeds it is
// treated as a transient failure.
func WithCallTimeout(d time.Duration) FailoverOption {
	return func(f *Failover) { f.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FailoverOption {
	return func(f *Failover) { f.logger = logger }
}

// NewFailover creates a failover strategy over a primary and an optional
// fallback provider.
func NewFailover(primary, fallback Provider, opts ...FailoverOption) *Failover {
	f := &Failover{
		primary:  primary,
		fallback: fallback,
		timeout:  2 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Prepare runs the prepare operation through the strategy.
func (f *Failover) Prepare(ctx context.Context, doc *core.Document) (PreparedArtifact, core.Provenance, error) {
	return run(ctx, f, "prepare", func(ctx context.Context, p Provider) (PreparedArtifact, error) {
		return p.Prepare(ctx, doc)
	})
}

// Index runs the index operation through the strategy.
func (f *Failover) Index(ctx context.Context, art PreparedArtifact) (IndexHandle, core.Provenance, error) {
	return run(ctx, f, "index", func(ctx context.Context, p Provider) (IndexHandle, error) {
		return p.Index(ctx, art)
	})
}

// Summarize runs the summarize operation through the strategy.
func (f *Failover) Summarize(ctx context.Context, h IndexHandle) (Summary, core.Provenance, error) {
	return run(ctx, f, "summarize", func(ctx context.Context, p Provider) (Summary, error) {
		return p.Summarize(ctx, h)
	})
}

// ExtractInsights runs the extract-insights operation through the strategy.
func (f *Failover) ExtractInsights(ctx context.Context, h IndexHandle) (Insights, core.Provenance, error) {
	return run(ctx, f, "extract_insights", func(ctx context.Context, p Provider) (Insights, error) {
		return p.ExtractInsights(ctx, h)
	})
}

// run executes one operation against the primary and, on transient failure,
// once against the fallback. The returned provenance names the provider that
// served the result.
func run[T any](ctx context.Context, f *Failover, op string, call func(context.Context, Provider) (T, error)) (T, core.Provenance, error) {
	var zero T

	invoke := func(p Provider) (T, error) {
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		v, err := call(cctx, p)
		if err != nil {
			return v, classifyCallError(err)
		}
		return v, nil
	}

	v, err := invoke(f.primary)
	if err == nil {
		return v, core.ProvenancePrimary, nil
	}
	if !IsTransient(err) || f.fallback == nil {
		return zero, "", err
	}

	f.logger.Warn("provider.failover",
		"op", op,
		"primary", f.primary.Name(),
		"fallback", f.fallback.Name(),
		"error", err,
	)

	v, fbErr := invoke(f.fallback)
	if fbErr != nil {
		// Both providers failed; the step follows the retry path with the
		// combined message surfaced to the operator.
		return zero, "", Transient(fmt.Errorf("primary %s: %v; fallback %s: %v", f.primary.Name(), err, f.fallback.Name(), fbErr))
	}
	return v, core.ProvenanceFallback, nil
}
