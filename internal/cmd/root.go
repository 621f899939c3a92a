// Package cmd wires the analysisd command tree.
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iwealthdemo/asset-management-workflow-sub001/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "analysisd",
	Short: "Document analysis pipeline daemon",
	Long: `analysisd runs the asynchronous document analysis pipeline:
a durable job queue, a single-active worker driving documents through
preparation, indexing, summarization and insight extraction, and the
HTTP API the approval portal talks to.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with ANALYSIS_ prefix also apply)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
