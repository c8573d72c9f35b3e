package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketwatch/internal/model"
)

func TestListTrades(t *testing.T) {
	t.Run("array response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/trades" {
				t.Errorf("path = %q, want /trades", r.URL.Path)
			}
			w.Write([]byte(`[{"id":1,"symbol":"AAPL","quantity":10,"price":"150.25"},{"symbol":"MSFT","quantity":2,"price":410}]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		trades, err := c.ListTrades(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(trades) != 2 {
			t.Fatalf("len(trades) = %d, want 2", len(trades))
		}
		if trades[0].ID == nil || *trades[0].ID != 1 {
			t.Errorf("trades[0].ID = %v, want 1", trades[0].ID)
		}
		if !trades[0].Price.Equal(decimal.RequireFromString("150.25")) {
			t.Errorf("trades[0].Price = %s, want 150.25", trades[0].Price)
		}
		if trades[1].ID != nil {
			t.Errorf("trades[1].ID = %v, want nil", *trades[1].ID)
		}
	})

	t.Run("non-array response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"trades":[]}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		if _, err := c.ListTrades(context.Background()); !errors.Is(err, ErrUnexpectedPayload) {
			t.Errorf("error = %v, want ErrUnexpectedPayload", err)
		}
	})
}

func TestCreateTrade(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	err := c.CreateTrade(context.Background(), model.Trade{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.RequireFromString("150.5"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["symbol"] != "AAPL" {
		t.Errorf("symbol = %v, want AAPL", got["symbol"])
	}
	// Numbers are sent as JSON numbers, not strings.
	if q, ok := got["quantity"].(float64); !ok || q != 10 {
		t.Errorf("quantity = %v (%T), want 10", got["quantity"], got["quantity"])
	}
	if p, ok := got["price"].(float64); !ok || p != 150.5 {
		t.Errorf("price = %v (%T), want 150.5", got["price"], got["price"])
	}
}

func TestGetHistorical(t *testing.T) {
	t.Run("sorted oldest first", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/positions/265598/historical/ONE_DAY" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if r.URL.Query().Get("days") != "30" {
				t.Errorf("days = %q, want 30", r.URL.Query().Get("days"))
			}
			w.Write([]byte(`[
				{"id":2,"timestamp":"2024-03-02T00:00:00Z","low":101},
				{"id":1,"timestamp":"2024-03-01T00:00:00Z","low":99.5}
			]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, "")
		bars, err := c.GetHistorical(context.Background(), HistoricalOptions{
			ConID:     "265598",
			Timeframe: "ONE_DAY",
			Days:      30,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(bars) != 2 {
			t.Fatalf("len(bars) = %d, want 2", len(bars))
		}
		if bars[0].ID != 1 || bars[1].ID != 2 {
			t.Errorf("order = [%d %d], want [1 2]", bars[0].ID, bars[1].ID)
		}
	})

	t.Run("validation", func(t *testing.T) {
		c := NewClient("http://localhost:1", "")
		tests := []struct {
			name string
			opts HistoricalOptions
		}{
			{"missing conid", HistoricalOptions{Timeframe: "ONE_DAY", Days: 1}},
			{"bad timeframe", HistoricalOptions{ConID: "1", Timeframe: "ONE_WEEK", Days: 1}},
			{"zero days", HistoricalOptions{ConID: "1", Timeframe: "ONE_DAY"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := c.GetHistorical(context.Background(), tt.opts); err == nil {
					t.Error("expected error, got nil")
				}
			})
		}
	})
}

func TestPlaceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/orders" {
			t.Errorf("path = %q, want /orders", r.URL.Path)
		}
		if q.Get("conid") != "265598" || q.Get("quantity") != "5" || q.Get("price") != "99.5" || q.Get("action") != "BUY" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"orderId":"1"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	err := c.PlaceOrder(context.Background(), model.Order{
		ConID:    "265598",
		Quantity: decimal.NewFromInt(5),
		Price:    decimal.RequireFromString("99.5"),
		Action:   model.ActionBuy,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.PlaceOrder(context.Background(), model.Order{ConID: "1", Action: "HOLD"}); err == nil {
		t.Error("expected error for invalid action")
	}
}

func TestCreatingRequestsAreNotRetried(t *testing.T) {
	tests := []struct {
		name         string
		call         func(c *Client) error
		wantAttempts int32
	}{
		{
			name: "create trade",
			call: func(c *Client) error {
				return c.CreateTrade(context.Background(), model.Trade{
					Symbol:   "AAPL",
					Quantity: decimal.NewFromInt(1),
					Price:    decimal.NewFromInt(150),
				})
			},
			wantAttempts: 1,
		},
		{
			name: "place order",
			call: func(c *Client) error {
				return c.PlaceOrder(context.Background(), model.Order{
					ConID:    "265598",
					Quantity: decimal.NewFromInt(1),
					Price:    decimal.NewFromInt(150),
					Action:   model.ActionSell,
				})
			},
			wantAttempts: 1,
		},
		{
			name: "subscribe retries",
			call: func(c *Client) error {
				return c.Subscribe(context.Background(), "AAPL")
			},
			wantAttempts: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer server.Close()

			c := NewClient(server.URL, "", WithRetries(3, time.Millisecond))
			err := tt.call(c)

			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
				t.Errorf("error = %v, want 502 APIError", err)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestValidTimeframe(t *testing.T) {
	for _, tf := range Timeframes {
		if !ValidTimeframe(tf) {
			t.Errorf("ValidTimeframe(%q) = false, want true", tf)
		}
	}
	if ValidTimeframe("one_day") {
		t.Error("ValidTimeframe(\"one_day\") = true, want false")
	}
}
