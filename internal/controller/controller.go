package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/marketwatch/internal/history"
	"github.com/rickgao/marketwatch/internal/model"
	"github.com/rickgao/marketwatch/internal/session"
	"github.com/rickgao/marketwatch/internal/stream"
)

// Subscriber ensures the backend pushes updates for a symbol.
type Subscriber interface {
	EnsureSubscribed(ctx context.Context, symbol string) error
}

// QuotePoller pulls a single quote.
type QuotePoller interface {
	PollOnce(ctx context.Context, symbol string) (model.Tick, error)
}

// StreamOpener opens a push connection for one symbol. onError must be
// called at most once and never after the returned handle is closed.
type StreamOpener interface {
	OpenStream(ctx context.Context, symbol string, onTick func(model.Tick), onError func(error)) (io.Closer, error)
}

// StreamOpenerFunc is a function adapter for StreamOpener.
type StreamOpenerFunc func(ctx context.Context, symbol string, onTick func(model.Tick), onError func(error)) (io.Closer, error)

func (f StreamOpenerFunc) OpenStream(ctx context.Context, symbol string, onTick func(model.Tick), onError func(error)) (io.Closer, error) {
	return f(ctx, symbol, onTick, onError)
}

// DialerOpener adapts a stream.Dialer to StreamOpener.
func DialerOpener(d *stream.Dialer) StreamOpener {
	return StreamOpenerFunc(func(ctx context.Context, symbol string, onTick func(model.Tick), onError func(error)) (io.Closer, error) {
		conn, err := d.Open(ctx, symbol, onTick, onError)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Probe  session.Probe
	Gate   Subscriber
	Poller QuotePoller
	Stream StreamOpener
}

func (d Deps) validate() error {
	switch {
	case d.Probe == nil:
		return errors.New("controller: probe is required")
	case d.Gate == nil:
		return errors.New("controller: subscription gate is required")
	case d.Poller == nil:
		return errors.New("controller: quote poller is required")
	case d.Stream == nil:
		return errors.New("controller: stream opener is required")
	}
	return nil
}

// Config holds controller configuration.
type Config struct {
	RecheckInterval time.Duration // Session re-check period while not streaming (default: 60s)
	HistorySize     int           // Ticks retained, newest first (default: 50)
	EventBuffer     int           // Pending task events (default: 64)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecheckInterval: 60 * time.Second,
		HistorySize:     50,
		EventBuffer:     64,
	}
}

// Observer is notified with every published snapshot. It runs on the
// controller goroutine and must not block.
type Observer func(Snapshot)

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn for change notifications.
func WithObserver(fn Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller is the live market-data acquisition state machine.
type Controller struct {
	cfg       Config
	deps      Deps
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time

	views  chan viewRequest
	events chan event

	// Owned by the run goroutine.
	history *history.Ring[model.Tick]
	cur     *viewSession
	state   State
	lastErr *Error
	status  *model.SessionStatus

	// Published state, read by any goroutine.
	mu   sync.RWMutex
	snap Snapshot

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Controller.
func New(cfg Config, deps Deps, logger *slog.Logger, opts ...Option) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = def.RecheckInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}

	c := &Controller{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		now:     time.Now,
		views:   make(chan viewRequest),
		events:  make(chan event, cfg.EventBuffer),
		history: history.NewRing[model.Tick](cfg.HistorySize),
		state:   Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap = Snapshot{State: Idle, History: []model.Tick{}, UpdatedAt: c.now()}

	return c, nil
}

// Start launches the controller loop.
func (c *Controller) Start(ctx context.Context) error {
	if c.started.Load() {
		return errors.New("controller already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started.Store(true)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("market data controller started",
		"recheck_interval", c.cfg.RecheckInterval,
		"history_size", c.cfg.HistorySize,
	)

	return nil
}

// Stop cancels all in-flight work, closes any open stream and waits for
// the loop to exit.
func (c *Controller) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("market data controller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ViewSymbol makes inst the viewed instrument. It returns once the
// controller has applied the change; the decision itself continues in the
// background.
func (c *Controller) ViewSymbol(ctx context.Context, inst model.Instrument) error {
	if inst.Symbol == "" {
		return ErrEmptySymbol
	}
	if !c.started.Load() {
		return ErrNotStarted
	}

	req := viewRequest{inst: inst, done: make(chan struct{})}

	select {
	case c.views <- req:
	case <-c.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-c.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.snap
	s.History = append([]model.Tick(nil), c.snap.History...)
	return s
}

// History returns the viewed symbol's ticks, newest first.
func (c *Controller) History() []model.Tick {
	return c.Snapshot().History
}

// Err returns the current error, or nil.
func (c *Controller) Err() *Error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Error
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.State
}

// publish copies loop-owned state into the snapshot and notifies observers.
func (c *Controller) publish() {
	s := Snapshot{
		State:     c.state,
		History:   c.history.Items(),
		Error:     c.lastErr,
		UpdatedAt: c.now(),
	}
	if c.cur != nil {
		inst := c.cur.inst
		s.Instrument = &inst
		s.Symbol = inst.Symbol
	}
	if c.status != nil {
		st := *c.status
		s.Status = &st
	}

	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()

	for _, fn := range c.observers {
		fn(s)
	}
}
