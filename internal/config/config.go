package config

import "time"

// Config is the root configuration for a marketwatch instance.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Stream  StreamConfig  `yaml:"stream"`
	History HistoryConfig `yaml:"history"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// APIConfig holds backend trading API settings.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"`
	StreamURL    string        `yaml:"stream_url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// SessionConfig controls market-session probing.
type SessionConfig struct {
	Source          string        `yaml:"source"` // "api" or "calendar"
	RecheckInterval time.Duration `yaml:"recheck_interval"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
}

// StreamConfig holds push-feed connection settings.
type StreamConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// HistoryConfig bounds the in-memory tick history.
type HistoryConfig struct {
	Size int `yaml:"size"`
}

// ServerConfig holds the UI-facing HTTP server settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: "debug", "release", "test"
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // DEBUG, INFO, WARN, ERROR
	Format string `yaml:"format"` // json or text
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}
