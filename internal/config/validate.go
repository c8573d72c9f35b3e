package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.stream_url", c.API.StreamURL, "ws", "wss"); err != nil {
		return err
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Session.Source != SourceAPI && c.Session.Source != SourceCalendar {
		return fmt.Errorf("session.source must be %q or %q, got %q", SourceAPI, SourceCalendar, c.Session.Source)
	}
	if c.Session.RecheckInterval <= 0 {
		return errors.New("session.recheck_interval must be > 0")
	}

	if c.Stream.PingTimeout < c.Stream.PingInterval {
		return fmt.Errorf("stream.ping_timeout (%s) cannot be shorter than ping_interval (%s)", c.Stream.PingTimeout, c.Stream.PingInterval)
	}

	if c.History.Size < 1 {
		return errors.New("history.size must be >= 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %s, got %q", field, strings.Join(schemes, " or "), u.Scheme)
}
