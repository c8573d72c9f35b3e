package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/marketwatch/internal/model"
)

// Probe reports the session status of an instrument's exchange.
type Probe interface {
	CheckStatus(ctx context.Context, inst model.Instrument) (model.SessionStatus, error)
}

// ProbeFunc is a function adapter for Probe.
type ProbeFunc func(ctx context.Context, inst model.Instrument) (model.SessionStatus, error)

func (f ProbeFunc) CheckStatus(ctx context.Context, inst model.Instrument) (model.SessionStatus, error) {
	return f(ctx, inst)
}

// StatusSource fetches session status by symbol.
type StatusSource interface {
	GetSessionStatus(ctx context.Context, symbol string) (model.SessionStatus, error)
}

// APIProbe checks session status through the backend REST API.
type APIProbe struct {
	source  StatusSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewAPIProbe creates a probe backed by source. Each check is bounded by timeout.
func NewAPIProbe(source StatusSource, timeout time.Duration, logger *slog.Logger) *APIProbe {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIProbe{
		source:  source,
		timeout: timeout,
		logger:  logger,
	}
}

// CheckStatus implements Probe.
func (p *APIProbe) CheckStatus(ctx context.Context, inst model.Instrument) (model.SessionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	status, err := p.source.GetSessionStatus(ctx, inst.Symbol)
	if err != nil {
		return model.SessionStatus{}, fmt.Errorf("check status %s: %w", inst.Symbol, err)
	}

	p.logger.Debug("session status",
		"symbol", inst.Symbol,
		"exchange", status.Exchange,
		"is_open", status.IsOpen,
		"session", status.Session,
	)

	return status, nil
}
