// Package anthropic implements the fallback inference provider. It has no
// server-side document index: documents are staged locally and queries run
// prompt-based over the document excerpt, so the fallback can serve any step
// without depending on state the primary provider holds.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

const apiVersion = "2023-06-01"

// Config for the Anthropic client.
type Config struct {
	APIKey        string        // if empty, falls back to env ANTHROPIC_API_KEY
	BaseURL       string        // default https://api.anthropic.com
	Model         string        // e.g. "claude-3-5-sonnet-20241022"
	MaxTokens     int           // response token cap
	SummaryType   string        // general, executive or technical
	AnalysisFocus string        // investment, financial, risk or general
	Timeout       time.Duration // http client timeout
}

type Client struct {
	cfg   Config
	http  *http.Client
	log   *slog.Logger
	files provider.FileSource
}

func NewClient(cfg Config, files provider.FileSource, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.SummaryType == "" {
		cfg.SummaryType = "general"
	}
	if cfg.AnalysisFocus == "" {
		cfg.AnalysisFocus = provider.FocusInvestment
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if files == nil {
		files = provider.OSFileSource{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   logger,
		files: files,
	}
}

func (c *Client) Name() string { return "anthropic" }

// Prepare stages the document locally. The excerpt is the only artifact the
// query steps need, so there is no upload.
func (c *Client) Prepare(ctx context.Context, doc *core.Document) (provider.PreparedArtifact, error) {
	_, excerpt, err := provider.ReadExcerpt(ctx, c.files, doc.StoragePath)
	if err != nil {
		return provider.PreparedArtifact{}, provider.Permanent(fmt.Errorf("read document %s: %w", doc.ID, err))
	}

	attrs := provider.ExtractMetadataFromFilename(doc.FileName)

	c.log.Info("llm.prepare.ok",
		"provider", c.Name(),
		"document_id", doc.ID,
		"excerpt_len", len(excerpt),
	)

	return provider.PreparedArtifact{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileID:     "local-" + doc.ID,
		Attributes: attrs,
		Excerpt:    excerpt,
	}, nil
}

// Index is a local no-op: prompt-based querying needs only the excerpt.
func (c *Client) Index(_ context.Context, art provider.PreparedArtifact) (provider.IndexHandle, error) {
	if art.Excerpt == "" {
		return provider.IndexHandle{}, provider.Permanent(fmt.Errorf("document %s has no readable text", art.DocumentID))
	}
	return provider.IndexHandle{
		DocumentID: art.DocumentID,
		FileID:     art.FileID,
		Attributes: art.Attributes,
		Excerpt:    art.Excerpt,
	}, nil
}

func (c *Client) Summarize(ctx context.Context, h provider.IndexHandle) (provider.Summary, error) {
	prompt := provider.SummaryPrompt(c.cfg.SummaryType) +
		"\n\nDocument excerpt:\n" + h.Excerpt
	content, model, usage, err := c.message(ctx, "llm.summarize", h, "", prompt)
	if err != nil {
		return provider.Summary{}, err
	}
	return provider.Summary{Text: content, Model: model, Usage: usage}, nil
}

func (c *Client) ExtractInsights(ctx context.Context, h provider.IndexHandle) (provider.Insights, error) {
	prompt := provider.InsightPrompt(c.cfg.AnalysisFocus) +
		"\n\nDocument excerpt:\n" + h.Excerpt
	content, model, usage, err := c.message(ctx, "llm.insights", h, provider.InsightSystemPrompt, prompt)
	if err != nil {
		return provider.Insights{}, err
	}

	payload, err := provider.ParseInsights([]byte(content))
	if err != nil {
		c.log.Error("llm.insights.schema_validation_failed",
			"provider", c.Name(), "error", err, "content_len", len(content),
		)
		return provider.Insights{}, provider.Permanent(fmt.Errorf("insights schema: %w", err))
	}

	return provider.Insights{
		Text:           payload.Insights,
		Classification: payload.Classification,
		RiskLevel:      payload.RiskLevel,
		Model:          model,
		Usage:          usage,
	}, nil
}

func (c *Client) message(ctx context.Context, event string, h provider.IndexHandle, system, prompt string) (string, string, core.Usage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info(event+".start",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"document_id", h.DocumentID,
	)

	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if system != "" {
		body["system"] = system
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/messages", body)
	if err != nil {
		c.log.Error(event+".http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", "", core.Usage{}, err
	}

	var resp struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", "", core.Usage{}, provider.Transient(fmt.Errorf("decode response: %w", err))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", "", core.Usage{}, provider.Transient(fmt.Errorf("empty content in response"))
	}

	usage := core.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}

	c.log.Info(event+".ok",
		"req_id", rid,
		"model", model,
		"content_len", len(content),
		"total_tokens", usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, model, usage, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, provider.Permanent(fmt.Errorf("marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, provider.Transient(err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("anthropic http error: %w", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("anthropic response body close error", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > 512 {
			msg = msg[:512] + "..."
		}
		return nil, provider.ClassifyStatus(resp.StatusCode,
			fmt.Errorf("anthropic status %d: %s", resp.StatusCode, msg))
	}
	return raw, nil
}
