package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL         = "http://localhost:8080"
	DefaultStreamURL       = "ws://localhost:8080/market-data/stream"
	DefaultAPITimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 1 * time.Second
	DefaultSessionSource   = SourceAPI
	DefaultRecheckInterval = 60 * time.Second
	DefaultProbeTimeout    = 10 * time.Second
	DefaultPingInterval    = 30 * time.Second
	DefaultPingTimeout     = 90 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultHistorySize     = 50
	DefaultServerPort      = 3000
	DefaultServerMode      = "release"
	DefaultLogLevel        = "INFO"
	DefaultLogFormat       = "text"
	DefaultServiceName     = "marketwatch"
)

// Session status sources.
const (
	SourceAPI      = "api"
	SourceCalendar = "calendar"
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.StreamURL == "" {
		c.API.StreamURL = DefaultStreamURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Session defaults
	if c.Session.Source == "" {
		c.Session.Source = DefaultSessionSource
	}
	if c.Session.RecheckInterval == 0 {
		c.Session.RecheckInterval = DefaultRecheckInterval
	}
	if c.Session.ProbeTimeout == 0 {
		c.Session.ProbeTimeout = DefaultProbeTimeout
	}

	// Stream defaults
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}

	if c.History.Size == 0 {
		c.History.Size = DefaultHistorySize
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.Mode == "" {
		c.Server.Mode = DefaultServerMode
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
}
