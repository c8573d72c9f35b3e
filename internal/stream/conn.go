package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/marketwatch/internal/quote"
)

// Dialer opens stream connections.
type Dialer struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewDialer creates a new Dialer. Zero durations in cfg take defaults.
func NewDialer(cfg Config, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	return &Dialer{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Conn is one live stream connection delivering ticks for a single symbol.
type Conn struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	symbol  string
	onTick  TickHandler
	onError ErrorHandler

	ws   *websocket.Conn
	done chan struct{}

	// State
	mu       sync.Mutex
	closed   bool
	failed   bool
	lastSeen time.Time

	frames    atomic.Int64
	ticks     atomic.Int64
	filtered  atomic.Int64
	malformed atomic.Int64
}

// Open connects to the feed and starts delivering ticks for symbol. onError
// is called at most once, when the connection dies for any reason other than
// Close.
func (d *Dialer) Open(ctx context.Context, symbol string, onTick TickHandler, onError ErrorHandler) (*Conn, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	header := http.Header{}
	if d.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, d.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	c := &Conn{
		cfg:      d.cfg,
		logger:   d.logger.With("symbol", symbol),
		now:      d.now,
		symbol:   symbol,
		onTick:   onTick,
		onError:  onError,
		ws:       ws,
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}

	// Server sends ping, we respond with pong
	ws.SetPingHandler(func(data string) error {
		c.touch()
		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(c.cfg.WriteTimeout),
		)
	})

	// Server responds to our ping
	ws.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Info("stream connected", "url", d.cfg.URL)

	return c, nil
}

// Symbol returns the symbol this connection delivers.
func (c *Conn) Symbol() string {
	return c.symbol
}

// Close shuts the connection down. It is idempotent and never invokes the
// error handler.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	failed := c.failed
	c.mu.Unlock()

	if failed {
		// Already torn down by fail.
		return nil
	}

	close(c.done)

	if err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	); err != nil {
		c.logger.Debug("write close frame", "error", err)
	}
	err := c.ws.Close()

	c.logger.Info("stream closed")
	return err
}

// Stats returns connection statistics.
func (c *Conn) Stats() Stats {
	return Stats{
		Frames:    c.frames.Load(),
		Ticks:     c.ticks.Load(),
		Filtered:  c.filtered.Load(),
		Malformed: c.malformed.Load(),
	}
}

// fail tears the connection down and reports err, once. It does nothing
// after Close.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.closed || c.failed {
		c.mu.Unlock()
		return
	}
	c.failed = true
	c.mu.Unlock()

	close(c.done)
	if cerr := c.ws.Close(); cerr != nil {
		c.logger.Debug("close websocket", "error", cerr)
	}

	c.logger.Warn("stream failed", "error", err)
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// readLoop reads frames until the connection dies.
func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("read stream: %w", err))
			return
		}

		c.touch()
		c.frames.Add(1)
		c.handleFrame(data)
	}
}

// handleFrame delivers the ticks in one frame that match the symbol.
func (c *Conn) handleFrame(data []byte) {
	events, err := parseFrame(data)
	if err != nil {
		c.malformed.Add(1)
		c.logger.Debug("dropping frame", "error", err, "size", len(data))
		return
	}

	receivedAt := c.now()
	for _, ev := range events {
		sym, ok := quote.SymbolOf(ev)
		if !ok || sym != c.symbol {
			c.filtered.Add(1)
			continue
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.ticks.Add(1)
		if c.onTick != nil {
			c.onTick(quote.FromObject(c.symbol, ev, receivedAt))
		}
	}
}

// heartbeatLoop pings the server and detects stale connections.
func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.Lock()
			lastSeen := c.lastSeen
			c.mu.Unlock()

			if time.Since(lastSeen) > c.cfg.PingTimeout {
				c.logger.Warn("no traffic received, connection stale",
					"last_seen", lastSeen,
					"timeout", c.cfg.PingTimeout,
				)
				c.fail(ErrStaleConnection)
				return
			}
		}
	}
}
