package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/marketwatch/internal/model"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// tickRecorder collects ticks and errors from a Conn.
type tickRecorder struct {
	mu     sync.Mutex
	ticks  []model.Tick
	errs   []error
	tickCh chan struct{}
	errCh  chan struct{}
}

func newTickRecorder() *tickRecorder {
	return &tickRecorder{
		tickCh: make(chan struct{}, 100),
		errCh:  make(chan struct{}, 10),
	}
}

func (r *tickRecorder) onTick(t model.Tick) {
	r.mu.Lock()
	r.ticks = append(r.ticks, t)
	r.mu.Unlock()
	r.tickCh <- struct{}{}
}

func (r *tickRecorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.errCh <- struct{}{}
}

func (r *tickRecorder) waitTicks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.tickCh:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for tick %d of %d", i+1, n)
		}
	}
}

func (r *tickRecorder) waitError(t *testing.T) {
	t.Helper()
	select {
	case <-r.errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}
}

func (r *tickRecorder) snapshot() ([]model.Tick, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Tick(nil), r.ticks...), append([]error(nil), r.errs...)
}

func testConfig(server *httptest.Server) Config {
	return Config{
		URL:          wsURL(server),
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func TestConn_DemuxBySymbol(t *testing.T) {
	stop := make(chan struct{})
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"AAPL","c":187.1,"v":100,"t":1709307000000}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"MSFT","c":410.5}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"s":"MSFT","price":1},{"s":"AAPL","price":187.2}]`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"AAPL","last":187.3},{"s":"GOOG","last":150}]}`))
		<-stop
	})
	defer server.Close()
	defer close(stop)

	rec := newTickRecorder()
	c, err := NewDialer(testConfig(server), nil).Open(context.Background(), "AAPL", rec.onTick, rec.onError)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	rec.waitTicks(t, 3)

	// Give a trailing MSFT tick a chance to arrive if filtering were broken.
	time.Sleep(50 * time.Millisecond)

	ticks, errs := rec.snapshot()
	if len(ticks) != 3 {
		t.Fatalf("len(ticks) = %d, want 3", len(ticks))
	}
	wantPrices := []string{"187.1", "187.2", "187.3"}
	for i, tick := range ticks {
		if tick.Symbol != "AAPL" {
			t.Errorf("ticks[%d].Symbol = %q, want AAPL", i, tick.Symbol)
		}
		if tick.Price == nil || !tick.Price.Equal(decimal.RequireFromString(wantPrices[i])) {
			t.Errorf("ticks[%d].Price = %v, want %s", i, tick.Price, wantPrices[i])
		}
	}
	if !ticks[0].Timestamp.Equal(time.UnixMilli(1709307000000)) {
		t.Errorf("ticks[0].Timestamp = %v, want %v", ticks[0].Timestamp, time.UnixMilli(1709307000000))
	}
	if len(errs) != 0 {
		t.Errorf("errors = %v, want none; malformed frames must not end the connection", errs)
	}

	stats := c.Stats()
	if stats.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", stats.Malformed)
	}
	if stats.Filtered != 3 {
		t.Errorf("Filtered = %d, want 3", stats.Filtered)
	}
}

func TestConn_ServerCloseReportsOnce(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})
	defer server.Close()

	rec := newTickRecorder()
	c, err := NewDialer(testConfig(server), nil).Open(context.Background(), "AAPL", rec.onTick, rec.onError)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rec.waitError(t)
	time.Sleep(50 * time.Millisecond)

	if err := c.Close(); err != nil {
		t.Errorf("Close() after failure error = %v", err)
	}

	_, errs := rec.snapshot()
	if len(errs) != 1 {
		t.Fatalf("onError calls = %d, want 1", len(errs))
	}
	var closeErr *websocket.CloseError
	if !errors.As(errs[0], &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("error = %v, want normal closure", errs[0])
	}
}

func TestConn_CloseDoesNotReport(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	rec := newTickRecorder()
	c, err := NewDialer(testConfig(server), nil).Open(context.Background(), "AAPL", rec.onTick, rec.onError)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, errs := rec.snapshot(); len(errs) != 0 {
		t.Errorf("onError calls = %d, want 0", len(errs))
	}
}

func TestConn_StaleConnection(t *testing.T) {
	stop := make(chan struct{})
	// Never reads, so pings are never answered.
	server := mockWSServer(t, func(conn *websocket.Conn) {
		<-stop
	})
	defer server.Close()
	defer close(stop)

	cfg := testConfig(server)
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PingTimeout = 60 * time.Millisecond

	var calls atomic.Int32
	errCh := make(chan error, 2)
	c, err := NewDialer(cfg, nil).Open(context.Background(), "AAPL", nil, func(err error) {
		calls.Add(1)
		errCh <- err
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStaleConnection) {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stale connection")
	}

	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("onError calls = %d, want 1", calls.Load())
	}
}

func TestDialer_OpenFailure(t *testing.T) {
	d := NewDialer(Config{URL: "ws://127.0.0.1:1/market-data/stream"}, nil)
	if _, err := d.Open(context.Background(), "AAPL", nil, nil); err == nil {
		t.Error("Open() error = nil, want dial error")
	}
	if _, err := d.Open(context.Background(), "", nil, nil); !errors.Is(err, ErrEmptySymbol) {
		t.Errorf("Open(\"\") error = %v, want ErrEmptySymbol", err)
	}
}

func TestDialer_SendsAuthorization(t *testing.T) {
	got := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	cfg := testConfig(server)
	cfg.APIKey = "secret"
	c, err := NewDialer(cfg, nil).Open(context.Background(), "AAPL", nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	if h := <-got; h != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", h, "Bearer secret")
	}
}
