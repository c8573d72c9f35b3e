package controller

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/marketwatch/internal/model"
)

// viewSession is the lifetime of one ViewSymbol decision. Every task it
// starts is tracked by wg and stops when ctx is canceled.
type viewSession struct {
	id     uuid.UUID
	inst   model.Instrument
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stream      io.Closer
	attempt     int  // escalation attempt counter
	deadAttempt int  // attempt whose stream failed before it was handed over
	opening     bool // subscribe+open in flight
	probing     bool // re-check probe in flight

	timerCancel context.CancelFunc
}

func newViewSession(parent context.Context, inst model.Instrument) *viewSession {
	ctx, cancel := context.WithCancel(parent)
	return &viewSession{
		id:     uuid.New(),
		inst:   inst,
		ctx:    ctx,
		cancel: cancel,
	}
}

// spawn runs fn as a task of the session.
func (s *viewSession) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

type eventKind int

const (
	evStatus eventKind = iota
	evRecheckDue
	evPolled
	evSubscribeFailed
	evOpenFailed
	evStreamOpened
	evTick
	evStreamError
)

// event is a task result delivered to the run loop.
type event struct {
	kind    eventKind
	session uuid.UUID
	attempt int

	recheck bool
	status  model.SessionStatus
	tick    model.Tick
	stream  io.Closer
	err     error
}

type viewRequest struct {
	inst model.Instrument
	done chan struct{}
}
