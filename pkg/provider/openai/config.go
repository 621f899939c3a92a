// Package openai implements the primary inference provider: file upload,
// vector-store indexing and file_search-grounded querying against the
// OpenAI API.
package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/iwealthdemo/asset-management-workflow-sub001/pkg/provider"
)

// Config for the OpenAI client.
type Config struct {
	APIKey        string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL       string        // default https://api.openai.com/v1
	Model         string        // e.g. "gpt-4o"
	VectorStoreID string        // index target for uploaded documents
	SummaryType   string        // general, executive or technical
	AnalysisFocus string        // investment, financial, risk or general
	Timeout       time.Duration // http client timeout
	PollInterval  time.Duration // vector-store indexing poll interval
	MaxPolls      int           // indexing poll attempts before giving up
}

type Client struct {
	cfg   Config
	http  *http.Client
	log   *slog.Logger
	files provider.FileSource
}

func NewClient(cfg Config, files provider.FileSource, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
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
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
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
