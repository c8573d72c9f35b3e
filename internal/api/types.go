package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/marketwatch/internal/model"
)

// Errors
var (
	ErrMalformedStatus   = errors.New("malformed session status")
	ErrEmptySymbol       = errors.New("symbol is required")
	ErrUnexpectedPayload = errors.New("unexpected response payload")
	ErrInvalidTimeframe  = errors.New("invalid timeframe")
)

// Timeframes accepted by the historical bars endpoint.
var Timeframes = []string{
	"ONE_MIN",
	"THREE_MIN",
	"FIVE_MIN",
	"FIFTEEN_MIN",
	"THIRTY_MIN",
	"ONE_HOUR",
	"ONE_DAY",
}

// ValidTimeframe reports whether tf is one of Timeframes.
func ValidTimeframe(tf string) bool {
	for _, v := range Timeframes {
		if v == tf {
			return true
		}
	}
	return false
}

// SessionStatusResponse from GET /market-data/{symbol}/status
type SessionStatusResponse struct {
	Exchange string  `json:"exchange"`
	IsOpen   *bool   `json:"isOpen"`
	Session  string  `json:"session"`
	Holiday  *string `json:"holiday"`
	Timezone string  `json:"timezone"`
}

// ToModel converts the response to a model.SessionStatus.
// A response without isOpen is rejected rather than read as closed.
func (r *SessionStatusResponse) ToModel() (model.SessionStatus, error) {
	if r.IsOpen == nil {
		return model.SessionStatus{}, fmt.Errorf("%w: missing isOpen", ErrMalformedStatus)
	}
	s := model.SessionStatus{
		Exchange: r.Exchange,
		IsOpen:   *r.IsOpen,
		Session:  r.Session,
		Timezone: r.Timezone,
	}
	if r.Holiday != nil && *r.Holiday != "" {
		h := *r.Holiday
		s.Holiday = &h
	}
	return s, nil
}

// CreateTradeRequest is the body of POST /trades.
type CreateTradeRequest struct {
	Symbol   string      `json:"symbol"`
	Quantity json.Number `json:"quantity"`
	Price    json.Number `json:"price"`
}

// HistoricalOptions configures a GetHistorical request.
type HistoricalOptions struct {
	ConID     string
	Timeframe string
	Days      int
}
