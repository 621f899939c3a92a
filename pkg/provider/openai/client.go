package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

func (c *Client) Name() string { return "openai" }

// Prepare uploads the document to the files endpoint and derives the
// filename metadata that later rides on the vector-store attachment.
func (c *Client) Prepare(ctx context.Context, doc *core.Document) (provider.PreparedArtifact, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.prepare.start",
		"req_id", rid,
		"provider", c.Name(),
		"document_id", doc.ID,
		"file_name", doc.FileName,
	)

	data, excerpt, err := provider.ReadExcerpt(ctx, c.files, doc.StoragePath)
	if err != nil {
		c.log.Error("llm.prepare.read_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return provider.PreparedArtifact{}, provider.Permanent(fmt.Errorf("read document %s: %w", doc.ID, err))
	}

	raw, err := c.uploadFile(ctx, doc.FileName, data)
	if err != nil {
		c.log.Error("llm.prepare.upload_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return provider.PreparedArtifact{}, err
	}

	var uploaded struct {
		ID       string `json:"id"`
		Bytes    int64  `json:"bytes"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(raw, &uploaded); err != nil {
		return provider.PreparedArtifact{}, provider.Transient(fmt.Errorf("decode upload response: %w", err))
	}
	if uploaded.ID == "" {
		return provider.PreparedArtifact{}, provider.Transient(fmt.Errorf("upload response missing file id"))
	}

	attrs := provider.ExtractMetadataFromFilename(doc.FileName)
	attrs["file_id"] = uploaded.ID
	attrs["file_size"] = strconv.FormatInt(uploaded.Bytes, 10)
	attrs["upload_date"] = time.Now().UTC().Format(time.RFC3339)

	c.log.Info("llm.prepare.ok",
		"req_id", rid,
		"file_id", uploaded.ID,
		"bytes", uploaded.Bytes,
		"company", attrs["company"],
		"document_type", attrs["document_type"],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return provider.PreparedArtifact{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileID:     uploaded.ID,
		Attributes: attrs,
		Excerpt:    excerpt,
	}, nil
}

// Index attaches the uploaded file to the configured vector store and polls
// until indexing settles.
func (c *Client) Index(ctx context.Context, art provider.PreparedArtifact) (provider.IndexHandle, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.index.start",
		"req_id", rid,
		"provider", c.Name(),
		"document_id", art.DocumentID,
		"file_id", art.FileID,
		"vector_store_id", c.cfg.VectorStoreID,
	)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/vector_stores/" + c.cfg.VectorStoreID + "/files"
	body := map[string]any{
		"file_id":    art.FileID,
		"attributes": art.Attributes,
	}
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.index.attach_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return provider.IndexHandle{}, err
	}

	var attached struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &attached); err != nil {
		return provider.IndexHandle{}, provider.Transient(fmt.Errorf("decode attach response: %w", err))
	}

	status := attached.Status
	for i := 0; status == "in_progress" && i < c.cfg.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return provider.IndexHandle{}, provider.Transient(ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}
		status, err = c.fileStatus(ctx, art.FileID)
		if err != nil {
			return provider.IndexHandle{}, err
		}
	}

	switch status {
	case "completed":
	case "failed", "cancelled":
		c.log.Error("llm.index.failed",
			"req_id", rid, "status", status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return provider.IndexHandle{}, provider.Permanent(fmt.Errorf("vector store indexing %s for file %s", status, art.FileID))
	default:
		return provider.IndexHandle{}, provider.Transient(fmt.Errorf("vector store indexing still %q after %d polls", status, c.cfg.MaxPolls))
	}

	c.log.Info("llm.index.ok",
		"req_id", rid,
		"file_id", art.FileID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return provider.IndexHandle{
		DocumentID: art.DocumentID,
		FileID:     art.FileID,
		IndexID:    c.cfg.VectorStoreID,
		Attributes: art.Attributes,
		Excerpt:    art.Excerpt,
	}, nil
}

// Summarize runs a file_search-grounded query scoped to the indexed file.
func (c *Client) Summarize(ctx context.Context, h provider.IndexHandle) (provider.Summary, error) {
	prompt := provider.SummaryPrompt(c.cfg.SummaryType)
	content, model, usage, err := c.query(ctx, "llm.summarize", h, prompt, "", 0.3)
	if err != nil {
		return provider.Summary{}, err
	}
	return provider.Summary{Text: content, Model: model, Usage: usage}, nil
}

// ExtractInsights runs the analyst prompt and validates the structured
// payload. A schema violation is permanent for this provider; the failover
// layer may still get a conforming payload out of the fallback.
func (c *Client) ExtractInsights(ctx context.Context, h provider.IndexHandle) (provider.Insights, error) {
	prompt := provider.InsightPrompt(c.cfg.AnalysisFocus)
	content, model, usage, err := c.query(ctx, "llm.insights", h, prompt, provider.InsightSystemPrompt, 0.2)
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

// query hits the responses endpoint with a file_search tool filtered to the
// handle's file and decodes content, model and token usage.
func (c *Client) query(ctx context.Context, event string, h provider.IndexHandle, prompt, instructions string, temperature float32) (string, string, core.Usage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info(event+".start",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"document_id", h.DocumentID,
		"file_id", h.FileID,
		"temp", temperature,
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"tools": []map[string]any{
			{
				"type":             "file_search",
				"vector_store_ids": []string{h.IndexID},
				"filters": map[string]any{
					"type":  "eq",
					"key":   "file_id",
					"value": h.FileID,
				},
			},
		},
	}
	if instructions != "" {
		body["instructions"] = instructions
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/responses"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error(event+".http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", "", core.Usage{}, err
	}

	var resp struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Error(event+".decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", "", core.Usage{}, provider.Transient(fmt.Errorf("decode response: %w", err))
	}
	if len(resp.Choices) == 0 {
		c.log.Error(event+".no_choices",
			"req_id", rid, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", "", core.Usage{}, provider.Transient(fmt.Errorf("no choices in response"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	usage := core.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
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

func (c *Client) fileStatus(ctx context.Context, fileID string) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/vector_stores/" + c.cfg.VectorStoreID + "/files/" + fileID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", provider.Transient(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	raw, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", provider.Transient(fmt.Errorf("decode file status: %w", err))
	}
	return out.Status, nil
}

func (c *Client) uploadFile(ctx context.Context, filename string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return nil, provider.Transient(fmt.Errorf("write purpose field: %w", err))
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("create form file: %w", err))
	}
	if _, err := fw.Write(data); err != nil {
		return nil, provider.Transient(fmt.Errorf("write form file: %w", err))
	}
	if err := mw.Close(); err != nil {
		return nil, provider.Transient(fmt.Errorf("close multipart: %w", err))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, provider.Transient(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
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
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do executes the request and classifies failures: transport errors are
// transient, non-2xx statuses are classified by code.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("openai http error: %w", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.ClassifyStatus(resp.StatusCode,
			fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(string(raw), 512)))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
