// Package provider defines the inference-provider contract used by the
// analysis pipeline, the transient/permanent error taxonomy, and the
// primary-then-fallback failover strategy.
package provider

import (
	"context"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
)

// PreparedArtifact is the output of the prepare step: the document uploaded
// to (or staged for) a provider, with filename-derived metadata and a text
// excerpt that lets a provider without server-side indexing still answer
// queries about the document.
type PreparedArtifact struct {
	DocumentID string            `json:"document_id"`
	FileName   string            `json:"file_name"`
	FileID     string            `json:"file_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Excerpt    string            `json:"excerpt,omitempty"`
}

// IndexHandle is the output of the index step and the input to the query
// steps. It carries everything either provider needs: the provider-side
// index ID for semantic search, and the excerpt for prompt-based fallback.
type IndexHandle struct {
	DocumentID string            `json:"document_id"`
	FileID     string            `json:"file_id"`
	IndexID    string            `json:"index_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Excerpt    string            `json:"excerpt,omitempty"`
}

// Summary is the output of the summarize step.
type Summary struct {
	Text  string     `json:"text"`
	Model string     `json:"model"`
	Usage core.Usage `json:"usage"`
}

// Insights is the output of the extract-insights step.
type Insights struct {
	Text           string     `json:"text"`
	Classification string     `json:"classification"`
	RiskLevel      string     `json:"risk_level"`
	Model          string     `json:"model"`
	Usage          core.Usage `json:"usage"`
}

// Provider is the four-operation contract every inference provider
// implements. Each call returns errors wrapped Transient or Permanent;
// anything unwrapped is treated as transient by the failover layer.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Prepare uploads or stages the document and extracts metadata.
	Prepare(ctx context.Context, doc *core.Document) (PreparedArtifact, error)

	// Index makes the prepared document queryable.
	Index(ctx context.Context, art PreparedArtifact) (IndexHandle, error)

	// Summarize produces a document summary.
	Summarize(ctx context.Context, h IndexHandle) (Summary, error)

	// ExtractInsights produces structured investment insights.
	ExtractInsights(ctx context.Context, h IndexHandle) (Insights, error)
}
