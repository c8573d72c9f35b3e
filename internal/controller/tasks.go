package controller

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rickgao/marketwatch/internal/model"
	"github.com/rickgao/marketwatch/internal/tracing"
)

// send delivers ev to the loop unless the session has ended.
func (c *Controller) send(s *viewSession, ev event) bool {
	ev.session = s.id
	select {
	case c.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (c *Controller) probeTask(s *viewSession, recheck bool) {
	ctx, span := tracing.StartSpan(s.ctx, "controller.probe")
	span.SetAttributes(
		attribute.String("symbol", s.inst.Symbol),
		attribute.Bool("recheck", recheck),
	)
	status, err := c.deps.Probe.CheckStatus(ctx, s.inst)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("is_open", status.IsOpen))
	}
	span.End()

	c.send(s, event{kind: evStatus, recheck: recheck, status: status, err: err})
}

func (c *Controller) pollTask(s *viewSession) {
	ctx, span := tracing.StartSpan(s.ctx, "controller.poll")
	span.SetAttributes(attribute.String("symbol", s.inst.Symbol))
	tick, err := c.deps.Poller.PollOnce(ctx, s.inst.Symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	c.send(s, event{kind: evPolled, tick: tick, err: err})
}

// escalateTask subscribes and opens the stream. A handle that cannot be
// handed to the loop is closed here.
func (c *Controller) escalateTask(s *viewSession, attempt int) {
	ctx, span := tracing.StartSpan(s.ctx, "controller.escalate")
	span.SetAttributes(
		attribute.String("symbol", s.inst.Symbol),
		attribute.Int("attempt", attempt),
	)
	defer span.End()

	if err := c.deps.Gate.EnsureSubscribed(ctx, s.inst.Symbol); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.send(s, event{kind: evSubscribeFailed, attempt: attempt, err: err})
		return
	}

	onTick := func(t model.Tick) {
		c.send(s, event{kind: evTick, attempt: attempt, tick: t})
	}
	onError := func(err error) {
		c.send(s, event{kind: evStreamError, attempt: attempt, err: err})
	}

	h, err := c.deps.Stream.OpenStream(ctx, s.inst.Symbol, onTick, onError)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.send(s, event{kind: evOpenFailed, attempt: attempt, err: err})
		return
	}

	if !c.send(s, event{kind: evStreamOpened, attempt: attempt, stream: h}) {
		c.closeStream(h, s.inst.Symbol)
	}
}

// recheckTask asks the loop to re-probe every RecheckInterval until ctx ends.
func (c *Controller) recheckTask(ctx context.Context, s *viewSession) {
	ticker := time.NewTicker(c.cfg.RecheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case c.events <- event{kind: evRecheckDue, session: s.id}:
			case <-ctx.Done():
				return
			}
		}
	}
}
