package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// DefaultDimensions are the evaluation dimensions used when neither stored
// settings nor the request name any.
var DefaultDimensions = []string{
	"Engagement potential - how likely readers are to react, share, or reply",
	"Clarity and readability - how easy the post is to understand",
	"Emotional impact - how well the post evokes feelings or reactions",
	"Relevance to target audience - how well it resonates with intended readers",
}

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		DSN string `env:"DB_DSN" envDefault:"file:data/crest.db?cache=shared&_journal_mode=WAL&_foreign_keys=on"`
	}
	LLM struct {
		BaseURL           string        `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
		APIKey            string        `env:"LLM_API_KEY,required"`
		Model             string        `env:"LLM_MODEL" envDefault:"openrouter/anthropic/claude-sonnet-4.5"`
		MaxTokens         int           `env:"LLM_MAX_TOKENS" envDefault:"4096"`
		Temperature       float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
		RequestsPerMinute int           `env:"LLM_REQUESTS_PER_MINUTE" envDefault:"60"`
		Timeout           time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	}
	Optimization struct {
		MaxIterations  int    `env:"OPT_MAX_ITERATIONS" envDefault:"10"`
		Patience       int    `env:"OPT_PATIENCE" envDefault:"5"`
		CandidateLimit int    `env:"OPT_CANDIDATE_LIMIT" envDefault:"280"`
		Dimensions     string `env:"OPT_DIMENSIONS"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	// Ensure the data directory exists for file-backed databases
	if dir := databaseDir(cfg.Database.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DefaultedDimensions returns the OPT_DIMENSIONS override split on
// semicolons, or DefaultDimensions when unset.
func (c *Config) DefaultedDimensions() []string {
	if strings.TrimSpace(c.Optimization.Dimensions) == "" {
		return append([]string(nil), DefaultDimensions...)
	}
	parts := strings.Split(c.Optimization.Dimensions, ";")
	dimensions := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dimensions = append(dimensions, p)
		}
	}
	return dimensions
}

// databaseDir extracts the parent directory from a file-backed sqlite DSN.
// Returns "" for in-memory databases.
func databaseDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}
