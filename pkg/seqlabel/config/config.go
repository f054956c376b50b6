// Package config loads the labeling pipeline configuration from YAML.
// Credentials never live in the file: providers read their API keys from the
// environment variable named here.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Retry    RetryConfig    `yaml:"retry"`
	Batch    BatchConfig    `yaml:"batch"`
	Paths    PathsConfig    `yaml:"paths"`
	Logging  LoggingConfig  `yaml:"logging"`
	Gazette  GazetteConfig  `yaml:"gazette"`
}

// ProviderConfig selects and tunes the hosted tagger.
type ProviderConfig struct {
	// Kind is "openai" or "gemini".
	Kind      string `yaml:"kind"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	// EndpointPath overrides the default completion path (Azure).
	EndpointPath string `yaml:"endpoint_path"`
	// ExtraHeaders are sent verbatim with every request (Azure api-key).
	ExtraHeaders map[string]string `yaml:"extra_headers"`
	// Temperature defaults to 0.1: labels should be reproducible.
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	TimeoutSecs int      `yaml:"timeout_seconds"`
}

// RetryConfig shapes the backoff policy for transient tagger failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// BatchConfig tunes the driver loop.
type BatchConfig struct {
	// FlushEvery is the coupled output+checkpoint flush interval, in
	// records.
	FlushEvery int `yaml:"flush_every"`
	// RedactPhones enables the phone-number pre-pass.
	RedactPhones bool `yaml:"redact_phones"`
}

// PathsConfig names the files a run touches.
type PathsConfig struct {
	Input      string `yaml:"input"`
	Output     string `yaml:"output"`
	Checkpoint string `yaml:"checkpoint"`
	Ledger     string `yaml:"ledger"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// GazetteConfig lists gazetteer sources.
type GazetteConfig struct {
	IconsURL string   `yaml:"icons_url"`
	HTMLURLs []string `yaml:"html_urls"`
	Output   string   `yaml:"output"`
}

// Load reads and validates a config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.Kind == "" {
		c.Provider.Kind = "openai"
	}
	if c.Provider.APIKeyEnv == "" {
		switch c.Provider.Kind {
		case "gemini":
			c.Provider.APIKeyEnv = "GEMINI_API_KEY"
		default:
			c.Provider.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if c.Provider.Temperature == nil {
		t := 0.1
		c.Provider.Temperature = &t
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = 4096
	}
	if c.Provider.TimeoutSecs <= 0 {
		c.Provider.TimeoutSecs = 60
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 2 * time.Second
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Retry.Jitter < 0 {
		c.Retry.Jitter = 0
	}
	if c.Batch.FlushEvery <= 0 {
		c.Batch.FlushEvery = 10
	}
	if c.Paths.Checkpoint == "" && c.Paths.Output != "" {
		c.Paths.Checkpoint = c.Paths.Output + ".checkpoint"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Gazette.IconsURL == "" {
		c.Gazette.IconsURL = defaultIconsURL
	}
}

const defaultIconsURL = "https://api.github.com/repos/tandpfun/skill-icons/contents/icons"

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown provider kind %q", c.Provider.Kind)
	}
	if c.Provider.Kind == "openai" && c.Provider.BaseURL == "" && c.Provider.EndpointPath == "" {
		return fmt.Errorf("config: provider.base_url required for openai")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("config: provider.model required")
	}
	if c.Retry.Jitter > 1 {
		return fmt.Errorf("config: retry.jitter must be in [0, 1]")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging level %q", c.Logging.Level)
	}
	return nil
}

// APIKey resolves the provider credential from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.Provider.APIKeyEnv)
}
