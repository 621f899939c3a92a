// Package config loads daemon configuration from an optional YAML file and
// ANALYSIS_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full daemon configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// DSN is the sqlite path or connection string.
	DSN string `mapstructure:"dsn"`
}

type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Limit    int           `mapstructure:"limit"`
}

type OpenAIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	VectorStoreID string        `mapstructure:"vector_store_id"`
	SummaryType   string        `mapstructure:"summary_type"`
	AnalysisFocus string        `mapstructure:"analysis_focus"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AnthropicConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// Enabled toggles the fallback provider entirely.
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.dsn", "analysis.db")
	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.call_timeout", 2*time.Minute)
	v.SetDefault("worker.retry_backoff", 30*time.Second)
	v.SetDefault("sweep.interval", time.Minute)
	v.SetDefault("sweep.limit", 100)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.summary_type", "general")
	v.SetDefault("openai.analysis_focus", "investment")
	v.SetDefault("openai.timeout", 60*time.Second)
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.timeout", 60*time.Second)
	v.SetDefault("anthropic.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from path (optional; empty means env and defaults
// only) and the environment. Environment variables use the ANALYSIS_ prefix
// with underscores, e.g. ANALYSIS_OPENAI_API_KEY.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ANALYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
