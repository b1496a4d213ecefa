// Package config provides configuration loading and validation for GitHound.
package config

import (
	"errors"
	"time"
)

// Sentinel validation errors.
var (
	// ErrInvalidLogLevel indicates an unknown logging level.
	ErrInvalidLogLevel = errors.New("logging.level must be one of debug, info, warn, error")
	// ErrInvalidLogFormat indicates an unknown logging format.
	ErrInvalidLogFormat = errors.New("logging.format must be text or json")
	// ErrInvalidSearchTimeout indicates a negative default search timeout.
	ErrInvalidSearchTimeout = errors.New("search.default_timeout must be non-negative")
	// ErrInvalidMaxResults indicates a negative search result cap.
	ErrInvalidMaxResults = errors.New("search.max_results must be non-negative")
	// ErrInvalidMaxCommits indicates a negative search commit cap.
	ErrInvalidMaxCommits = errors.New("search.max_commits must be non-negative")
	// ErrInvalidContextLines indicates a negative context width.
	ErrInvalidContextLines = errors.New("search.context_lines must be non-negative")
	// ErrInvalidHistoryLimit indicates a non-positive history cap.
	ErrInvalidHistoryLimit = errors.New("analysis.history_limit must be positive")
	// ErrInvalidRetention indicates a non-positive operation retention.
	ErrInvalidRetention = errors.New("operations.retention must be positive")
	// ErrInvalidJanitorInterval indicates a non-positive janitor interval.
	ErrInvalidJanitorInterval = errors.New("operations.janitor_interval must be positive")
)

// Config is the top-level configuration struct for githound.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Logging       LoggingConfig       `mapstructure:"logging"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Search        SearchConfig        `mapstructure:"search"`
	Operations    OperationsConfig    `mapstructure:"operations"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AnalysisConfig holds analysis boundary settings.
type AnalysisConfig struct {
	// HistoryLimit caps commit history requests at the tool boundary.
	HistoryLimit int `mapstructure:"history_limit"`
}

// SearchConfig holds search orchestrator settings.
type SearchConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxResults     int           `mapstructure:"max_results"`
	MaxCommits     int           `mapstructure:"max_commits"`
	ContextLines   int           `mapstructure:"context_lines"`
}

// OperationsConfig holds operation store settings.
type OperationsConfig struct {
	// Retention is how long terminal operations stay queryable.
	Retention time.Duration `mapstructure:"retention"`
	// JanitorInterval is how often expired operations are evicted.
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// ObservabilityConfig holds tracing and metrics settings.
type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	// OTLPEndpoint enables OTLP gRPC export when non-empty.
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateSearch(); err != nil {
		return err
	}

	if c.Analysis.HistoryLimit <= 0 {
		return ErrInvalidHistoryLimit
	}

	return c.validateOperations()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.DefaultTimeout < 0 {
		return ErrInvalidSearchTimeout
	}

	if c.Search.MaxResults < 0 {
		return ErrInvalidMaxResults
	}

	if c.Search.MaxCommits < 0 {
		return ErrInvalidMaxCommits
	}

	if c.Search.ContextLines < 0 {
		return ErrInvalidContextLines
	}

	return nil
}

func (c *Config) validateOperations() error {
	if c.Operations.Retention <= 0 {
		return ErrInvalidRetention
	}

	if c.Operations.JanitorInterval <= 0 {
		return ErrInvalidJanitorInterval
	}

	return nil
}
