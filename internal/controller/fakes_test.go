package controller

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketwatch/internal/model"
)

// callLog records collaborator calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(prefix string) int {
	n := 0
	for _, c := range l.list() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (l *callLog) index(call string) int {
	for i, c := range l.list() {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeProbe struct {
	log *callLog
	fn  func(ctx context.Context, symbol string, n int) (model.SessionStatus, error)

	mu     sync.Mutex
	counts map[string]int
}

func (p *fakeProbe) CheckStatus(ctx context.Context, inst model.Instrument) (model.SessionStatus, error) {
	p.mu.Lock()
	if p.counts == nil {
		p.counts = make(map[string]int)
	}
	p.counts[inst.Symbol]++
	n := p.counts[inst.Symbol]
	p.mu.Unlock()

	p.log.add("probe " + inst.Symbol)
	return p.fn(ctx, inst.Symbol, n)
}

func alwaysStatus(open bool) func(context.Context, string, int) (model.SessionStatus, error) {
	return func(context.Context, string, int) (model.SessionStatus, error) {
		return model.SessionStatus{Exchange: "NASDAQ", IsOpen: open, Session: "regular"}, nil
	}
}

type fakeGate struct {
	log *callLog
	n   atomic.Int32
	err func(n int32) error
}

func (g *fakeGate) EnsureSubscribed(ctx context.Context, symbol string) error {
	n := g.n.Add(1)
	g.log.add("subscribe " + symbol)
	if g.err != nil {
		return g.err(n)
	}
	return nil
}

type fakePoller struct {
	log *callLog
	err error
}

func (p *fakePoller) PollOnce(ctx context.Context, symbol string) (model.Tick, error) {
	p.log.add("poll " + symbol)
	if p.err != nil {
		return model.Tick{}, p.err
	}
	price := decimal.RequireFromString("100.5")
	return model.Tick{Symbol: symbol, Timestamp: time.Now(), Price: &price}, nil
}

type fakeStream struct {
	symbol   string
	log      *callLog
	onTick   func(model.Tick)
	onError  func(error)
	closeErr error
	closed   atomic.Bool
}

func (s *fakeStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.log.add("close " + s.symbol)
	}
	return s.closeErr
}

func (s *fakeStream) emit(price int64) {
	p := decimal.NewFromInt(price)
	s.onTick(model.Tick{Symbol: s.symbol, Timestamp: time.Now(), Price: &p})
}

func (s *fakeStream) fail(err error) {
	s.onError(err)
}

type fakeStreams struct {
	log      *callLog
	openErr  error
	closeErr error

	mu     sync.Mutex
	opened []*fakeStream
}

func (f *fakeStreams) OpenStream(ctx context.Context, symbol string, onTick func(model.Tick), onError func(error)) (io.Closer, error) {
	f.log.add("open " + symbol)
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := &fakeStream{symbol: symbol, log: f.log, onTick: onTick, onError: onError, closeErr: f.closeErr}
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeStreams) all() []*fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeStream(nil), f.opened...)
}

func (f *fakeStreams) last(t *testing.T) *fakeStream {
	t.Helper()
	all := f.all()
	if len(all) == 0 {
		t.Fatal("no stream opened")
	}
	return all[len(all)-1]
}

func (f *fakeStreams) live() int {
	n := 0
	for _, s := range f.all() {
		if !s.closed.Load() {
			n++
		}
	}
	return n
}

// harness wires fakes into a started Controller.
type harness struct {
	log     *callLog
	probe   *fakeProbe
	gate    *fakeGate
	poller  *fakePoller
	streams *fakeStreams
	logger  *slog.Logger
	c       *Controller

	mu     sync.Mutex
	states []State
	errs   []*Error
}

func newHarness(t *testing.T, probeFn func(context.Context, string, int) (model.SessionStatus, error)) *harness {
	t.Helper()
	log := &callLog{}
	h := &harness{
		log:     log,
		probe:   &fakeProbe{log: log, fn: probeFn},
		gate:    &fakeGate{log: log},
		poller:  &fakePoller{log: log},
		streams: &fakeStreams{log: log},
	}
	return h
}

func (h *harness) start(t *testing.T, cfg Config) *Controller {
	t.Helper()
	deps := Deps{Probe: h.probe, Gate: h.gate, Poller: h.poller, Stream: h.streams}
	c, err := New(cfg, deps, h.logger, WithObserver(func(s Snapshot) {
		h.mu.Lock()
		h.states = append(h.states, s.State)
		h.errs = append(h.errs, s.Error)
		h.mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.Stop(ctx)
	})
	h.c = c
	return c
}

func (h *harness) seen(state State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.states {
		if s == state {
			return true
		}
	}
	return false
}

func (h *harness) seenError(kind ErrorKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.errs {
		if e != nil && e.Kind == kind {
			return true
		}
	}
	return false
}

func view(t *testing.T, c *Controller, symbol string) {
	t.Helper()
	if err := c.ViewSymbol(context.Background(), model.Instrument{Symbol: symbol}); err != nil {
		t.Fatalf("ViewSymbol(%s) error = %v", symbol, err)
	}
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", desc)
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return c.State() == want })
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
