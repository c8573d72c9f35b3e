package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/rickgao/marketwatch/internal/model"
)

// ListTrades fetches all trades. A response that is not a JSON array is an error.
func (c *Client) ListTrades(ctx context.Context) ([]model.Trade, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, "/trades", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("list trades: %w: expected array", ErrUnexpectedPayload)
	}

	var trades []model.Trade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("list trades: unmarshal response: %w", err)
	}
	return trades, nil
}

// CreateTrade records a new trade. The request is sent once and never retried.
func (c *Client) CreateTrade(ctx context.Context, t model.Trade) error {
	if t.Symbol == "" {
		return ErrEmptySymbol
	}

	req := CreateTradeRequest{
		Symbol:   t.Symbol,
		Quantity: json.Number(t.Quantity.String()),
		Price:    json.Number(t.Price.String()),
	}
	if err := c.postOnce(ctx, "/trades", nil, req, nil); err != nil {
		return fmt.Errorf("create trade %s: %w", t.Symbol, err)
	}
	return nil
}

// GetHistorical fetches historical bars for a position, sorted oldest first.
func (c *Client) GetHistorical(ctx context.Context, opts HistoricalOptions) ([]model.Bar, error) {
	if opts.ConID == "" {
		return nil, fmt.Errorf("get historical: conid is required")
	}
	if !ValidTimeframe(opts.Timeframe) {
		return nil, fmt.Errorf("get historical: %w: %q", ErrInvalidTimeframe, opts.Timeframe)
	}
	if opts.Days < 1 {
		return nil, fmt.Errorf("get historical: days must be >= 1, got %d", opts.Days)
	}

	query := url.Values{}
	query.Set("days", strconv.Itoa(opts.Days))

	path := "/positions/" + url.PathEscape(opts.ConID) + "/historical/" + opts.Timeframe

	var bars []model.Bar
	if err := c.get(ctx, path, query, &bars); err != nil {
		return nil, fmt.Errorf("get historical %s: %w", opts.ConID, err)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return barTime(bars[i]) < barTime(bars[j])
	})

	c.logger.Debug("fetched historical bars",
		"conid", opts.ConID,
		"timeframe", opts.Timeframe,
		"days", opts.Days,
		"count", len(bars),
	)

	return bars, nil
}

// PlaceOrder submits a limit order. Parameters are sent as query values and
// the request is never retried.
func (c *Client) PlaceOrder(ctx context.Context, o model.Order) error {
	if o.ConID == "" {
		return fmt.Errorf("place order: conid is required")
	}
	if !o.Action.Valid() {
		return fmt.Errorf("place order: invalid action %q", o.Action)
	}

	query := url.Values{}
	query.Set("conid", o.ConID)
	query.Set("quantity", o.Quantity.String())
	query.Set("price", o.Price.String())
	query.Set("action", string(o.Action))

	if err := c.postOnce(ctx, "/orders", query, nil, nil); err != nil {
		return fmt.Errorf("place order %s: %w", o.ConID, err)
	}
	return nil
}

// barTime returns the bar's timestamp in ms, 0 when absent.
func barTime(b model.Bar) int64 {
	if b.Timestamp == nil {
		return 0
	}
	return b.Timestamp.UnixMilli()
}
