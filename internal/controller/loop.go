package controller

import (
	"context"
	"io"

	"github.com/rickgao/marketwatch/internal/model"
)

// run is the controller loop. It is the only goroutine that changes state.
func (c *Controller) run() {
	defer c.wg.Done()
	defer c.endSession()

	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.views:
			c.handleView(req.inst)
			close(req.done)
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

func (c *Controller) handleView(inst model.Instrument) {
	if c.cur != nil && c.cur.inst.Symbol == inst.Symbol {
		switch c.state {
		case Deciding, Streaming:
			c.logger.Debug("symbol already viewed", "symbol", inst.Symbol, "state", c.state)
			return
		}
		// Re-decide for the same symbol, keeping its history.
		c.endSession()
		c.beginSession(inst)
		return
	}

	prev := ""
	if c.cur != nil {
		prev = c.cur.inst.Symbol
	}
	c.endSession()
	c.history.Reset()
	c.lastErr = nil
	c.status = nil

	c.logger.Info("viewing symbol", "symbol", inst.Symbol, "previous", prev)
	c.beginSession(inst)
}

// beginSession enters Deciding for inst and starts the initial probe.
func (c *Controller) beginSession(inst model.Instrument) {
	s := newViewSession(c.ctx, inst)
	c.cur = s
	c.setState(Deciding)
	c.publish()

	s.spawn(func() { c.probeTask(s, false) })
}

// endSession cancels the current session, waits for its tasks and releases
// its stream. Nothing from the old session can reach state afterwards.
func (c *Controller) endSession() {
	s := c.cur
	if s == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.timerCancel = nil

	if s.stream != nil {
		c.closeStream(s.stream, s.inst.Symbol)
		s.stream = nil
	}
	c.cur = nil
}

// closeStream releases a stream handle, logging any close error.
func (c *Controller) closeStream(h io.Closer, symbol string) {
	if err := h.Close(); err != nil {
		c.logger.Debug("close stream", "symbol", symbol, "error", err)
	}
}

func (c *Controller) handleEvent(ev event) {
	s := c.cur
	if s == nil || ev.session != s.id {
		// Superseded session.
		if ev.kind == evStreamOpened && ev.stream != nil {
			c.closeStream(ev.stream, "")
		}
		return
	}

	switch ev.kind {
	case evStatus:
		c.onStatus(s, ev)
	case evRecheckDue:
		c.onRecheckDue(s)
	case evPolled:
		c.onPolled(s, ev)
	case evSubscribeFailed:
		c.onEscalationFailed(s, ev, SubscribeFailure)
	case evOpenFailed:
		c.onEscalationFailed(s, ev, StreamFailure)
	case evStreamOpened:
		c.onStreamOpened(s, ev)
	case evTick:
		c.onTick(s, ev)
	case evStreamError:
		c.onStreamError(s, ev)
	}
}

func (c *Controller) onStatus(s *viewSession, ev event) {
	open := false
	if ev.err != nil {
		c.logger.Warn("session status probe failed, treating as closed",
			"symbol", s.inst.Symbol,
			"error", &Error{Kind: StatusProbeFailure, Symbol: s.inst.Symbol, Err: ev.err},
		)
	} else {
		st := ev.status
		c.status = &st
		open = st.IsOpen
	}

	if ev.recheck {
		s.probing = false
		if s.stream != nil || s.opening || (c.state != Polled && c.state != Failed) {
			c.publish()
			return
		}
		if !open {
			c.logger.Debug("session still closed", "symbol", s.inst.Symbol)
			c.publish()
			return
		}
		c.logger.Info("session opened, escalating to stream", "symbol", s.inst.Symbol)
		c.escalate(s)
		c.publish()
		return
	}

	if c.state != Deciding {
		return
	}
	if open {
		c.escalate(s)
	} else {
		s.spawn(func() { c.pollTask(s) })
	}
	c.publish()
}

func (c *Controller) onRecheckDue(s *viewSession) {
	if s.stream != nil || s.opening || s.probing {
		return
	}
	if c.state != Polled && c.state != Failed {
		return
	}
	s.probing = true
	s.spawn(func() { c.probeTask(s, true) })
}

func (c *Controller) onPolled(s *viewSession, ev event) {
	if c.state != Deciding {
		return
	}
	if ev.err != nil {
		c.lastErr = &Error{Kind: PollFailure, Symbol: s.inst.Symbol, Err: ev.err}
		c.logger.Warn("quote poll failed", "symbol", s.inst.Symbol, "error", ev.err)
	} else {
		c.history.Push(ev.tick)
		c.lastErr = nil
	}
	c.setState(Polled)
	c.startTimer(s)
	c.publish()
}

func (c *Controller) onEscalationFailed(s *viewSession, ev event, kind ErrorKind) {
	if ev.attempt != s.attempt {
		return
	}
	s.opening = false
	c.lastErr = &Error{Kind: kind, Symbol: s.inst.Symbol, Err: ev.err}
	c.logger.Warn("stream escalation failed", "symbol", s.inst.Symbol, "kind", kind, "error", ev.err)
	c.setState(Failed)
	c.startTimer(s)
	c.publish()
}

func (c *Controller) onStreamOpened(s *viewSession, ev event) {
	if ev.attempt != s.attempt || ev.attempt == s.deadAttempt || s.stream != nil {
		// Failed before hand-over, or a duplicate.
		c.closeStream(ev.stream, s.inst.Symbol)
		if ev.attempt == s.attempt {
			s.opening = false
		}
		return
	}
	s.opening = false
	s.stream = ev.stream
	c.stopTimer(s)
	c.lastErr = nil
	c.setState(Streaming)
	c.publish()
}

func (c *Controller) onTick(s *viewSession, ev event) {
	if ev.attempt != s.attempt || ev.attempt == s.deadAttempt {
		return
	}
	c.history.Push(ev.tick)
	c.lastErr = nil
	c.publish()
}

func (c *Controller) onStreamError(s *viewSession, ev event) {
	if ev.attempt != s.attempt || ev.attempt == s.deadAttempt {
		return
	}
	if s.stream != nil {
		c.closeStream(s.stream, s.inst.Symbol)
		s.stream = nil
	} else {
		// The stream died before its handle reached the loop.
		s.deadAttempt = ev.attempt
	}
	c.lastErr = &Error{Kind: StreamFailure, Symbol: s.inst.Symbol, Err: ev.err}
	c.setState(Failed)
	c.startTimer(s)
	c.publish()
}

// escalate starts subscribe+open for the session.
func (c *Controller) escalate(s *viewSession) {
	s.attempt++
	s.opening = true
	attempt := s.attempt
	s.spawn(func() { c.escalateTask(s, attempt) })
}

// startTimer starts the periodic re-check if it is not running.
func (c *Controller) startTimer(s *viewSession) {
	if s.timerCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.timerCancel = cancel
	s.spawn(func() { c.recheckTask(ctx, s) })
}

func (c *Controller) stopTimer(s *viewSession) {
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
}

func (c *Controller) setState(next State) {
	if c.state == next {
		return
	}
	sym := ""
	if c.cur != nil {
		sym = c.cur.inst.Symbol
	}
	c.logger.Info("state transition", "symbol", sym, "from", c.state, "to", next)
	c.state = next
}
