package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no generation API key could be resolved.
var ErrMissingAPIKey = errors.New("generation API key is required (set OPENAI_API_KEY, FIGHTGEN_API_KEY or run 'fightgen auth login')")

// Config holds all configuration options for the fight generator
type Config struct {
	// Generation API settings
	Generator GeneratorConfig `yaml:"generator" toml:"generator" json:"generator"`

	// Batch sizing and pacing
	Batch BatchConfig `yaml:"batch" toml:"batch" json:"batch"`

	// Per-round retry and circuit breaker
	Retry RetryConfig `yaml:"retry" toml:"retry" json:"retry"`

	Dedupe DedupeConfig `yaml:"dedupe" toml:"dedupe" json:"dedupe"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" toml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// GeneratorConfig holds settings for the OpenAI-compatible completion API
type GeneratorConfig struct {
	APIKey      string        `yaml:"api_key,omitempty" toml:"api_key" json:"-" env:"FIGHTGEN_API_KEY"`
	BaseURL     string        `yaml:"base_url" toml:"base_url" json:"base_url" env:"FIGHTGEN_BASE_URL"`
	Model       string        `yaml:"model" toml:"model" json:"model" env:"FIGHTGEN_MODEL"`
	Temperature float64       `yaml:"temperature" toml:"temperature" json:"temperature" env:"FIGHTGEN_TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens" env:"FIGHTGEN_MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" json:"timeout" env:"FIGHTGEN_TIMEOUT"`
	// MaxAttempts bounds transport-level retries of a single request.
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts" json:"max_attempts" env:"FIGHTGEN_MAX_ATTEMPTS"`
	// Account names the stored credential to use when no key is configured.
	Account string `yaml:"account" toml:"account" json:"account" env:"FIGHTGEN_ACCOUNT"`
}

// BatchConfig holds batch sizing and pacing
type BatchConfig struct {
	Size            int           `yaml:"size" toml:"size" json:"size" env:"FIGHTGEN_BATCH_SIZE"`
	TotalTarget     int           `yaml:"total_target" toml:"total_target" json:"total_target" env:"FIGHTGEN_TOTAL"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay" toml:"inter_batch_delay" json:"inter_batch_delay" env:"FIGHTGEN_INTER_BATCH_DELAY"`
	ErrorDelay      time.Duration `yaml:"error_delay" toml:"error_delay" json:"error_delay" env:"FIGHTGEN_ERROR_DELAY"`
}

// RetryConfig holds retry configuration for failed generation rounds
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" toml:"max_retries" json:"max_retries" env:"FIGHTGEN_MAX_RETRIES"`
	BaseDelay  time.Duration `yaml:"base_delay" toml:"base_delay" json:"base_delay" env:"FIGHTGEN_RETRY_BASE_DELAY"`
	MaxDelay   time.Duration `yaml:"max_delay" toml:"max_delay" json:"max_delay" env:"FIGHTGEN_RETRY_MAX_DELAY"`
	// MaxAbandonedRounds stops the run after this many consecutive abandoned rounds. 0 disables the check.
	MaxAbandonedRounds int `yaml:"max_abandoned_rounds" toml:"max_abandoned_rounds" json:"max_abandoned_rounds" env:"FIGHTGEN_MAX_ABANDONED_ROUNDS"`
}

type DedupeConfig struct {
	RejectDuplicateFacts bool `yaml:"reject_duplicate_facts" toml:"reject_duplicate_facts" json:"reject_duplicate_facts" env:"FIGHTGEN_REJECT_DUPLICATE_FACTS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute" env:"FIGHTGEN_REQUESTS_PER_MINUTE"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Directory      string `yaml:"directory" toml:"directory" json:"directory" env:"FIGHTGEN_OUTPUT_DIR"`
	RecordsFile    string `yaml:"records_file" toml:"records_file" json:"records_file"`
	CSVFile        string `yaml:"csv_file" toml:"csv_file" json:"csv_file"`
	CheckpointFile string `yaml:"checkpoint_file" toml:"checkpoint_file" json:"checkpoint_file"`
	ReportFile     string `yaml:"report_file" toml:"report_file" json:"report_file"`
	ChartFile      string `yaml:"chart_file" toml:"chart_file" json:"chart_file"`
	MetricsFile    string `yaml:"metrics_file" toml:"metrics_file" json:"metrics_file"`
}

// Path joins name onto the output directory.
func (o OutputConfig) Path(name string) string {
	return filepath.Join(o.Directory, name)
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"FIGHTGEN_NOTIFICATIONS_ENABLED"`
	OnComplete       bool   `yaml:"on_complete" toml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" toml:"on_error" json:"on_error"`
	ProgressInterval int    `yaml:"progress_interval" toml:"progress_interval" json:"progress_interval"`
	NotificationType string `yaml:"notification_type" toml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" json:"level" env:"FIGHTGEN_LOG_LEVEL"`
	File  string `yaml:"file" toml:"file" json:"file" env:"FIGHTGEN_LOG_FILE"`
	JSON  bool   `yaml:"json" toml:"json" json:"json" env:"FIGHTGEN_LOG_JSON"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Generator: GeneratorConfig{
			BaseURL:     "https://api.openai.com/v1/",
			Model:       "gpt-4",
			Temperature: 0.9,
			MaxTokens:   2000,
			Timeout:     2 * time.Minute,
			MaxAttempts: 2,
			Account:     "default",
		},
		Batch: BatchConfig{
			Size:            50,
			TotalTarget:     10000,
			InterBatchDelay: 250 * time.Millisecond,
			ErrorDelay:      time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:         3,
			BaseDelay:          time.Second,
			MaxDelay:           30 * time.Second,
			MaxAbandonedRounds: 10,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Output: OutputConfig{
			Directory:      "output",
			RecordsFile:    "fights.json",
			CSVFile:        "fights.csv",
			CheckpointFile: "checkpoint.json",
			ReportFile:     "generation_report.json",
			ChartFile:      "species_usage.html",
			MetricsFile:    "metrics.prom",
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			ProgressInterval: 10,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// fallbackEnv holds variables read only when the prefixed ones are unset.
type fallbackEnv struct {
	OpenAIKey string `env:"OPENAI_API_KEY"`
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if c.Generator.APIKey == "" {
		var fb fallbackEnv
		if err := env.Parse(&fb); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
		c.Generator.APIKey = fb.OpenAIKey
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or TOML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	if isTOML(path) {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".fightgen.yaml",
		".fightgen.yml",
		".fightgen.toml",
		filepath.Join(home, ".config", "fightgen", "config.yaml"),
		filepath.Join(home, ".config", "fightgen", "config.toml"),
		filepath.Join(home, ".fightgen.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The API key is checked
// separately by ValidateCredentials so that offline commands still work.
func (c *Config) Validate() error {
	var errs []error

	if c.Generator.Model == "" {
		errs = append(errs, errors.New("generator model is required"))
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		errs = append(errs, errors.New("generator temperature must be between 0 and 2"))
	}
	if c.Generator.MaxTokens <= 0 {
		errs = append(errs, errors.New("generator max tokens must be positive"))
	}
	if c.Generator.MaxAttempts <= 0 {
		errs = append(errs, errors.New("generator max attempts must be positive"))
	}
	if c.Generator.Timeout <= 0 {
		errs = append(errs, errors.New("generator timeout must be positive"))
	}

	if c.Batch.Size <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Batch.TotalTarget <= 0 {
		errs = append(errs, errors.New("total target must be positive"))
	}
	if c.Batch.InterBatchDelay < 0 || c.Batch.ErrorDelay < 0 {
		errs = append(errs, errors.New("batch delays cannot be negative"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay cannot be negative"))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry max delay must not be less than base delay"))
	}
	if c.Retry.MaxAbandonedRounds < 0 {
		errs = append(errs, errors.New("max abandoned rounds cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	for name, file := range map[string]string{
		"records file":    c.Output.RecordsFile,
		"csv file":        c.Output.CSVFile,
		"checkpoint file": c.Output.CheckpointFile,
		"report file":     c.Output.ReportFile,
	} {
		if file == "" {
			errs = append(errs, fmt.Errorf("output %s is required", name))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials reports ErrMissingAPIKey when no key is configured.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.Generator.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Save saves the configuration to a file. The format follows the extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Never persist the key into a plain config file.
	out := *c
	out.Generator.APIKey = ""

	if isTOML(path) {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		defer file.Close()
		if err := toml.NewEncoder(file).Encode(out); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Generator.APIKey = apiKey
	}
	if model, ok := flags["model"].(string); ok && model != "" {
		c.Generator.Model = model
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Generator.BaseURL = baseURL
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Generator.Account = account
	}
	if size, ok := flags["batch-size"].(int); ok && size > 0 {
		c.Batch.Size = size
	}
	if total, ok := flags["total"].(int); ok && total > 0 {
		c.Batch.TotalTarget = total
	}
	if retries, ok := flags["max-retries"].(int); ok && retries >= 0 {
		c.Retry.MaxRetries = retries
	}
	if rounds, ok := flags["max-abandoned-rounds"].(int); ok && rounds >= 0 {
		c.Retry.MaxAbandonedRounds = rounds
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm >= 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if reject, ok := flags["reject-duplicate-facts"].(bool); ok && reject {
		c.Dedupe.RejectDuplicateFacts = true
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if notify, ok := flags["notify"].(bool); ok {
		c.Notifications.Enabled = notify
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fightgen.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
