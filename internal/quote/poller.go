package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/marketwatch/internal/model"
)

// Source fetches a raw quote payload for a symbol.
type Source interface {
	GetQuote(ctx context.Context, symbol string) (json.RawMessage, error)
}

// Config holds poller configuration.
type Config struct {
	Timeout time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// Poller performs single-shot quote fetches.
type Poller struct {
	cfg    Config
	source Source
	logger *slog.Logger
	now    func() time.Time
}

// NewPoller creates a new Poller.
func NewPoller(cfg Config, source Source, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:    cfg,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// PollOnce fetches the current quote for symbol and normalizes it.
func (p *Poller) PollOnce(ctx context.Context, symbol string) (model.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.source.GetQuote(ctx, symbol)
	if err != nil {
		return model.Tick{}, fmt.Errorf("poll %s: %w", symbol, err)
	}

	tick, err := Normalize(symbol, raw, p.now())
	if err != nil {
		return model.Tick{}, fmt.Errorf("poll %s: %w", symbol, err)
	}

	p.logger.Debug("polled quote",
		"symbol", symbol,
		"price", tick.Price,
		"duration", time.Since(start),
	)

	return tick, nil
}
