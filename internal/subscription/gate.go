// Package subscription tracks which symbols the backend has been asked to
// push, so each symbol is subscribed at most once.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the subscription state of a symbol.
type State int

const (
	NotSubscribed State = iota
	Subscribed
)

func (s State) String() string {
	switch s {
	case Subscribed:
		return "subscribed"
	default:
		return "not_subscribed"
	}
}

// Subscriber asks the backend to start pushing updates for a symbol.
type Subscriber interface {
	Subscribe(ctx context.Context, symbol string) error
}

// DefaultTimeout bounds a single Subscribe call.
const DefaultTimeout = 30 * time.Second

// Gate ensures a symbol is subscribed before a stream is opened for it.
// Subscribed is terminal for the lifetime of the Gate.
type Gate struct {
	sub     Subscriber
	logger  *slog.Logger
	timeout time.Duration

	group singleflight.Group

	mu         sync.RWMutex
	subscribed map[string]bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithTimeout bounds each Subscribe call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGate creates a new Gate.
func NewGate(sub Subscriber, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		sub:        sub,
		logger:     logger,
		timeout:    DefaultTimeout,
		subscribed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureSubscribed returns nil once symbol is subscribed. Concurrent calls for
// the same symbol share one Subscribe call and its result. The shared call
// is detached from the caller's cancellation and bounded by the gate timeout;
// canceling ctx only stops this caller from waiting.
func (g *Gate) EnsureSubscribed(ctx context.Context, symbol string) error {
	if g.State(symbol) == Subscribed {
		return nil
	}

	ch := g.group.DoChan(symbol, func() (any, error) {
		if g.State(symbol) == Subscribed {
			return nil, nil
		}
		subCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		if err := g.sub.Subscribe(subCtx, symbol); err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.subscribed[symbol] = true
		g.mu.Unlock()

		g.logger.Info("subscribed", "symbol", symbol)
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			g.logger.Warn("subscribe failed", "symbol", symbol, "error", res.Err)
			return fmt.Errorf("ensure subscribed %s: %w", symbol, res.Err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the subscription state of symbol.
func (g *Gate) State(symbol string) State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.subscribed[symbol] {
		return Subscribed
	}
	return NotSubscribed
}
