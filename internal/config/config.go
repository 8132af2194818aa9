package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the runtime.
type Config struct {
	Version       int                 `yaml:"version"`
	Server        ServerConfig        `yaml:"server"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Model         ModelConfig         `yaml:"model"`
	Convo         ConvoConfig         `yaml:"convo"`
	Retry         RetryConfig         `yaml:"retry"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the runtime's own listeners.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// SessionsConfig selects and configures the session repository backend.
type SessionsConfig struct {
	// Backend is one of "memory", "file", or "sql". Defaults to "memory".
	Backend string `yaml:"backend"`

	// FileRoot is the directory FileStore writes session_<id>/... trees under.
	FileRoot string `yaml:"file_root"`

	// SQL configures the Postgres/CockroachDB-backed store.
	SQL SQLSessionsConfig `yaml:"sql"`

	// LockOwnerID identifies this process when SQLStore's locker arbitrates
	// writers across replicas. Defaults to the hostname.
	LockOwnerID string `yaml:"lock_owner_id"`
}

// SQLSessionsConfig configures SQLStore's database connection.
type SQLSessionsConfig struct {
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// ModelConfig configures the Anthropic model adapter.
type ModelConfig struct {
	APIKey       string        `yaml:"api_key"`
	DefaultModel string        `yaml:"default_model"`
	BaseURL      string        `yaml:"base_url"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ConvoConfig configures the summarizing conversation manager.
type ConvoConfig struct {
	// Enabled toggles automatic summarization on context overflow.
	Enabled bool `yaml:"enabled"`

	// Ratio is the fraction of history to summarize away when triggered.
	Ratio float64 `yaml:"ratio"`

	// PreserveRecentMessages is the minimum number of trailing messages
	// never folded into the summary.
	PreserveRecentMessages int `yaml:"preserve_recent_messages"`
}

// RetryConfig configures backoff for model calls and summarization sub-calls.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// Load reads, expands, decodes, defaults, and validates a config file.
// Unknown fields are rejected so typos in operator-provided YAML surface
// immediately instead of silently no-oping.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applySessionsDefaults(&cfg.Sessions)
	applyModelDefaults(&cfg.Model)
	applyConvoDefaults(&cfg.Convo)
	applyRetryDefaults(&cfg.Retry)
	applyObservabilityDefaults(&cfg.Observability)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applySessionsDefaults(cfg *SessionsConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
	if cfg.FileRoot == "" {
		cfg.FileRoot = "./data/sessions"
	}
	if cfg.LockOwnerID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.LockOwnerID = host
		} else {
			cfg.LockOwnerID = "runtime"
		}
	}
	applySQLSessionsDefaults(&cfg.SQL)
}

func applySQLSessionsDefaults(cfg *SQLSessionsConfig) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 26257
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Database == "" {
		cfg.Database = "agentcore"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

func applyModelDefaults(cfg *ModelConfig) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
}

func applyConvoDefaults(cfg *ConvoConfig) {
	if cfg.Ratio == 0 {
		cfg.Ratio = 0.5
	}
	if cfg.PreserveRecentMessages == 0 {
		cfg.PreserveRecentMessages = 4
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 2.0
	}
}

// applyEnvOverrides lets deployment secrets bypass the config file entirely.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = key
	}
	if dsn := os.Getenv("SESSIONS_SQL_DSN"); dsn != "" && cfg.Sessions.SQL.DSN == "" {
		cfg.Sessions.SQL.DSN = dsn
	}
}

// ConfigValidationError describes why a loaded config was rejected.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func validateConfig(cfg *Config) error {
	switch cfg.Sessions.Backend {
	case "memory", "file", "sql":
	default:
		return &ConfigValidationError{
			Field:  "sessions.backend",
			Reason: fmt.Sprintf("must be one of memory, file, sql, got %q", cfg.Sessions.Backend),
		}
	}
	if cfg.Sessions.Backend == "sql" && cfg.Sessions.SQL.DSN == "" && cfg.Sessions.SQL.Host == "" {
		return &ConfigValidationError{
			Field:  "sessions.sql",
			Reason: "dsn or host must be set when backend is sql",
		}
	}
	if cfg.Convo.Ratio <= 0 || cfg.Convo.Ratio >= 1 {
		return &ConfigValidationError{
			Field:  "convo.ratio",
			Reason: fmt.Sprintf("must be in (0, 1), got %v", cfg.Convo.Ratio),
		}
	}
	if cfg.Retry.MaxAttempts < 1 {
		return &ConfigValidationError{
			Field:  "retry.max_attempts",
			Reason: "must be at least 1",
		}
	}
	return nil
}
