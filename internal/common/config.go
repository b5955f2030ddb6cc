package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Uploads     UploadsConfig   `toml:"uploads"`
	Quota       QuotaConfig     `toml:"quota"`
	Stream      StreamConfig    `toml:"stream"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	TTS         TTSConfig       `toml:"tts"`
	Retention   RetentionConfig `toml:"retention"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "10m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max deliveries per message before it is dropped
	RetryBackoff      string `toml:"retry_backoff"`      // e.g., "60s" - delay before a failed run is redelivered
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// UploadsConfig bounds what the submission endpoint accepts
type UploadsConfig struct {
	TempDir       string `toml:"temp_dir"`        // Directory for temporary upload files
	MaxFileSize   int64  `toml:"max_file_size"`   // Per-file cap in bytes
	RatePerMinute int    `toml:"rate_per_minute"` // Per-user submission rate limit
	RateBurst     int    `toml:"rate_burst"`      // Burst allowance for the limiter
}

// QuotaConfig bounds how many generations a free user may hold
type QuotaConfig struct {
	FreeGenerations int `toml:"free_generations"` // Max concurrent generations for non-premium users
}

// StreamConfig tunes the SSE status publisher
type StreamConfig struct {
	PollInterval   string `toml:"poll_interval"`   // Re-read interval, e.g. "1s"
	KeepaliveTicks int    `toml:"keepalive_ticks"` // Idle ticks between keepalive comments
	IdleBudget     int    `toml:"idle_budget"`     // Idle ticks before the stream times out
	RetryHintMs    int    `toml:"retry_hint_ms"`   // SSE retry: hint sent at stream open
}

// PipelineConfig tunes the stage executor
type PipelineConfig struct {
	MinTextLength int `toml:"min_text_length"` // Extracted text below this is a hard failure
}

// LLMConfig selects the content-generation provider
type LLMConfig struct {
	Provider string `toml:"provider"` // "gemini" or "claude"
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// TTSConfig configures audio synthesis of summaries
type TTSConfig struct {
	Model   string `toml:"model"`   // Speech-generation model name
	Voice   string `toml:"voice"`   // Prebuilt voice name
	Timeout string `toml:"timeout"`
}

// RetentionConfig controls the purge sweeper for soft-deleted jobs
type RetentionConfig struct {
	Enabled    bool   `toml:"enabled"`
	Schedule   string `toml:"schedule"`    // Cron schedule, e.g. "0 * * * *"
	PurgeAfter string `toml:"purge_after"` // Age before a soft-deleted job is purged, e.g. "24h"
}

// NewDefaultConfig returns a Config populated with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       2,
			VisibilityTimeout: "10m",
			MaxReceive:        3,
			RetryBackoff:      "60s",
			QueueName:         "processing",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/socratic",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Uploads: UploadsConfig{
			TempDir:       os.TempDir(),
			MaxFileSize:   10 * 1024 * 1024,
			RatePerMinute: 10,
			RateBurst:     3,
		},
		Quota: QuotaConfig{
			FreeGenerations: 3,
		},
		Stream: StreamConfig{
			PollInterval:   "1s",
			KeepaliveTicks: 15,
			IdleBudget:     300,
			RetryHintMs:    3000,
		},
		Pipeline: PipelineConfig{
			MinTextLength: 100,
		},
		LLM: LLMConfig{
			Provider: "gemini",
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Timeout:     "5m",
			Temperature: 0.7,
		},
		TTS: TTSConfig{
			Model:   "gemini-2.5-flash-preview-tts",
			Voice:   "Kore",
			Timeout: "5m",
		},
		Retention: RetentionConfig{
			Enabled:    true,
			Schedule:   "0 * * * *",
			PurgeAfter: "24h",
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SOCRATIC_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SOCRATIC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SOCRATIC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if pollInterval := os.Getenv("SOCRATIC_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("SOCRATIC_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if maxReceive := os.Getenv("SOCRATIC_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if m, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = m
		}
	}
	if backoff := os.Getenv("SOCRATIC_QUEUE_RETRY_BACKOFF"); backoff != "" {
		config.Queue.RetryBackoff = backoff
	}

	if badgerPath := os.Getenv("SOCRATIC_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SOCRATIC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SOCRATIC_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}

	if provider := os.Getenv("SOCRATIC_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if apiKey := os.Getenv("SOCRATIC_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("SOCRATIC_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	} else if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue concurrency must be positive, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxReceive <= 0 {
		return fmt.Errorf("queue max_receive must be positive, got %d", c.Queue.MaxReceive)
	}
	if _, err := time.ParseDuration(c.Queue.PollInterval); err != nil {
		return fmt.Errorf("invalid queue poll_interval %q: %w", c.Queue.PollInterval, err)
	}
	if _, err := time.ParseDuration(c.Queue.VisibilityTimeout); err != nil {
		return fmt.Errorf("invalid queue visibility_timeout %q: %w", c.Queue.VisibilityTimeout, err)
	}
	if _, err := time.ParseDuration(c.Queue.RetryBackoff); err != nil {
		return fmt.Errorf("invalid queue retry_backoff %q: %w", c.Queue.RetryBackoff, err)
	}
	if _, err := time.ParseDuration(c.Stream.PollInterval); err != nil {
		return fmt.Errorf("invalid stream poll_interval %q: %w", c.Stream.PollInterval, err)
	}
	if c.Stream.IdleBudget <= 0 {
		return fmt.Errorf("stream idle_budget must be positive, got %d", c.Stream.IdleBudget)
	}
	if c.Pipeline.MinTextLength <= 0 {
		return fmt.Errorf("pipeline min_text_length must be positive, got %d", c.Pipeline.MinTextLength)
	}
	if c.LLM.Provider != "gemini" && c.LLM.Provider != "claude" {
		return fmt.Errorf("invalid llm provider %q: must be 'gemini' or 'claude'", c.LLM.Provider)
	}
	return nil
}

// QueuePollInterval returns the parsed poll interval
func (c *Config) QueuePollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Queue.PollInterval)
	return d
}

// QueueVisibilityTimeout returns the parsed visibility timeout
func (c *Config) QueueVisibilityTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Queue.VisibilityTimeout)
	return d
}

// QueueRetryBackoff returns the parsed retry backoff
func (c *Config) QueueRetryBackoff() time.Duration {
	d, _ := time.ParseDuration(c.Queue.RetryBackoff)
	return d
}

// StreamPollInterval returns the parsed stream poll interval
func (c *Config) StreamPollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Stream.PollInterval)
	return d
}

// RetentionPurgeAfter returns the parsed purge age for deleted jobs
func (c *Config) RetentionPurgeAfter() time.Duration {
	d, err := time.ParseDuration(c.Retention.PurgeAfter)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
