package stream

import (
	"errors"
	"time"

	"github.com/rickgao/marketwatch/internal/model"
)

// Errors
var (
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrMalformedFrame  = errors.New("malformed stream frame")
	ErrEmptySymbol     = errors.New("symbol is required")
)

// Config holds stream connection configuration.
type Config struct {
	URL              string
	APIKey           string
	PingInterval     time.Duration // How often to ping the server (default: 30s)
	PingTimeout      time.Duration // Max silence before the connection is stale (default: 90s)
	WriteTimeout     time.Duration // Control frame write deadline (default: 5s)
	HandshakeTimeout time.Duration // Dial handshake timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:8080/market-data/stream",
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// TickHandler receives ticks for the connection's symbol.
type TickHandler func(model.Tick)

// ErrorHandler receives the error that ended the connection.
type ErrorHandler func(error)

// Stats contains connection statistics.
type Stats struct {
	Frames    int64 // Frames read
	Ticks     int64 // Ticks delivered
	Filtered  int64 // Events for other symbols
	Malformed int64 // Frames that failed to parse
}
