// Package providertest provides a scripted in-memory provider for exercising
// the failover, executor and worker layers without network calls.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

// Operation names accepted by FailNext and SetDelay.
const (
	OpPrepare         = "prepare"
	OpIndex           = "index"
	OpSummarize       = "summarize"
	OpExtractInsights = "extract_insights"
)

// Fake is a deterministic provider. Each operation succeeds with a canned
// result unless an error has been queued for it; queued errors are consumed
// in FIFO order, one per call.
type Fake struct {
	mu     sync.Mutex
	name   string
	errs   map[string][]error
	delays map[string]time.Duration
	calls  []string
}

func New(name string) *Fake {
	return &Fake{
		name:   name,
		errs:   make(map[string][]error),
		delays: make(map[string]time.Duration),
	}
}

// FailNext queues errors for op. Each subsequent call to op consumes one.
func (f *Fake) FailNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

// SetDelay makes every call to op block for d or until the context expires.
func (f *Fake) SetDelay(op string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[op] = d
}

// Calls returns the operations invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *Fake) Name() string { return f.name }

// begin records the call, applies any configured delay, and pops one queued
// error if present.
func (f *Fake) begin(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	delay := f.delays[op]
	var err error
	if q := f.errs[op]; len(q) > 0 {
		err = q[0]
		f.errs[op] = q[1:]
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (f *Fake) Prepare(ctx context.Context, doc *core.Document) (provider.PreparedArtifact, error) {
	if err := f.begin(ctx, OpPrepare); err != nil {
		return provider.PreparedArtifact{}, err
	}
	return provider.PreparedArtifact{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileID:     f.name + "-file-" + doc.ID,
		Attributes: provider.ExtractMetadataFromFilename(doc.FileName),
		Excerpt:    "excerpt of " + doc.FileName,
	}, nil
}

func (f *Fake) Index(ctx context.Context, art provider.PreparedArtifact) (provider.IndexHandle, error) {
	if err := f.begin(ctx, OpIndex); err != nil {
		return provider.IndexHandle{}, err
	}
	return provider.IndexHandle{
		DocumentID: art.DocumentID,
		FileID:     art.FileID,
		IndexID:    f.name + "-index",
		Attributes: art.Attributes,
		Excerpt:    art.Excerpt,
	}, nil
}

func (f *Fake) Summarize(ctx context.Context, h provider.IndexHandle) (provider.Summary, error) {
	if err := f.begin(ctx, OpSummarize); err != nil {
		return provider.Summary{}, err
	}
	return provider.Summary{
		Text:  fmt.Sprintf("%s summary of %s", f.name, h.DocumentID),
		Model: f.name + "-model",
		Usage: core.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
	}, nil
}

func (f *Fake) ExtractInsights(ctx context.Context, h provider.IndexHandle) (provider.Insights, error) {
	if err := f.begin(ctx, OpExtractInsights); err != nil {
		return provider.Insights{}, err
	}
	return provider.Insights{
		Text:           fmt.Sprintf("%s insights for %s", f.name, h.DocumentID),
		Classification: "financial_document",
		RiskLevel:      "low",
		Model:          f.name + "-model",
		Usage:          core.Usage{InputTokens: 200, OutputTokens: 80, TotalTokens: 280},
	}, nil
}
