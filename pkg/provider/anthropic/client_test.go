package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/core"
	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

type memFiles map[string]string

func (m memFiles) Open(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func newTestClient(t *testing.T, handler http.Handler, files memFiles) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, files, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testHandle() provider.IndexHandle {
	return provider.IndexHandle{
		DocumentID: "doc-1",
		FileID:     "local-doc-1",
		Excerpt:    "quarterly revenue grew 12 percent",
	}
}

func TestPrepare_StagesLocally(t *testing.T) {
	c := newTestClient(t, http.NewServeMux(), memFiles{
		"/uploads/reliance_quarterly.pdf": "quarterly revenue grew 12 percent",
	})

	art, err := c.Prepare(context.Background(), &core.Document{
		ID:          "doc-1",
		FileName:    "reliance_quarterly.pdf",
		StoragePath: "/uploads/reliance_quarterly.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "local-doc-1", art.FileID, "no server-side upload")
	assert.Equal(t, "quarterly revenue grew 12 percent", art.Excerpt)
	assert.Equal(t, "Reliance", art.Attributes["company"])
}

func TestIndex_IsLocalNoop(t *testing.T) {
	c := newTestClient(t, http.NewServeMux(), nil)

	h, err := c.Index(context.Background(), provider.PreparedArtifact{
		DocumentID: "doc-1",
		FileID:     "local-doc-1",
		Excerpt:    "some text",
	})
	require.NoError(t, err)
	assert.Equal(t, "local-doc-1", h.FileID)
	assert.Equal(t, "some text", h.Excerpt)
}

func TestIndex_EmptyExcerptIsPermanent(t *testing.T) {
	c := newTestClient(t, http.NewServeMux(), nil)

	_, err := c.Index(context.Background(), provider.PreparedArtifact{DocumentID: "doc-1"})
	require.Error(t, err)
	assert.True(t, provider.IsPermanent(err))
}

func TestSummarize_SendsExcerptInPrompt(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Positive(t, body.MaxTokens)
		require.Len(t, body.Messages, 1)
		assert.Contains(t, body.Messages[0].Content, "quarterly revenue grew 12 percent")

		json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-3-5-sonnet-20241022",
			"content": []map[string]string{
				{"type": "text", "text": "Revenue grew strongly "},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "this quarter."},
			},
			"usage": map[string]int{"input_tokens": 90, "output_tokens": 30},
		})
	})
	c := newTestClient(t, mux, nil)

	s, err := c.Summarize(context.Background(), testHandle())
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew strongly this quarter.", s.Text, "only text blocks are joined")
	assert.Equal(t, core.Usage{InputTokens: 90, OutputTokens: 30, TotalTokens: 120}, s.Usage)
}

func TestExtractInsights_ParsesStructuredPayload(t *testing.T) {
	content := `{"insights":"margin pressure ahead","classification":"quarterly_report","risk_level":"medium"}`
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			System string `json:"system"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body.System, "insight extraction carries the analyst system prompt")

		json.NewEncoder(w).Encode(map[string]any{
			"model":   "claude-3-5-sonnet-20241022",
			"content": []map[string]string{{"type": "text", "text": content}},
			"usage":   map[string]int{"input_tokens": 100, "output_tokens": 50},
		})
	})
	c := newTestClient(t, mux, nil)

	ins, err := c.ExtractInsights(context.Background(), testHandle())
	require.NoError(t, err)
	assert.Equal(t, "margin pressure ahead", ins.Text)
	assert.Equal(t, "quarterly_report", ins.Classification)
	assert.Equal(t, "medium", ins.RiskLevel)
}

func TestMessage_OverloadedIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	})
	c := newTestClient(t, mux, nil)

	_, err := c.Summarize(context.Background(), testHandle())
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}

func TestMessage_EmptyContentIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "claude-3-5-sonnet-20241022",
			"content": []map[string]string{},
			"usage":   map[string]int{"input_tokens": 10, "output_tokens": 0},
		})
	})
	c := newTestClient(t, mux, nil)

	_, err := c.Summarize(context.Background(), testHandle())
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}
