package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/marketwatch/internal/model"
)

func marketDataPath(symbol, op string) string {
	return "/market-data/" + url.PathEscape(symbol) + "/" + op
}

// GetSessionStatus fetches whether the instrument's home exchange is open.
func (c *Client) GetSessionStatus(ctx context.Context, symbol string) (model.SessionStatus, error) {
	if symbol == "" {
		return model.SessionStatus{}, ErrEmptySymbol
	}

	var resp SessionStatusResponse
	if err := c.get(ctx, marketDataPath(symbol, "status"), nil, &resp); err != nil {
		return model.SessionStatus{}, fmt.Errorf("get session status %s: %w", symbol, err)
	}

	status, err := resp.ToModel()
	if err != nil {
		return model.SessionStatus{}, fmt.Errorf("get session status %s: %w", symbol, err)
	}
	return status, nil
}

// Subscribe asks the backend to start pushing updates for symbol.
// The call is idempotent on the server side.
func (c *Client) Subscribe(ctx context.Context, symbol string) error {
	if symbol == "" {
		return ErrEmptySymbol
	}

	if err := c.post(ctx, marketDataPath(symbol, "subscribe"), nil, nil, nil); err != nil {
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	return nil
}

// GetQuote fetches the latest quote snapshot for symbol. The payload is returned
// undecoded because vendor field names vary; see package quote for normalization.
func (c *Client) GetQuote(ctx context.Context, symbol string) (json.RawMessage, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	body, err := c.doWithRetry(ctx, http.MethodGet, marketDataPath(symbol, "quote"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("get quote %s: %w", symbol, ErrUnexpectedPayload)
	}
	return json.RawMessage(body), nil
}
