package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// Instrument is a tradable symbol selected by the user.
type Instrument struct {
	Symbol        string `json:"symbol"`        // Primary key (e.g., "AAPL")
	Description   string `json:"description"`   // Display name
	DisplaySymbol string `json:"displaySymbol"` // Symbol as shown in the UI
	Type          string `json:"type"`          // e.g., "Common Stock", "ETF"
}

// SessionStatus is a point-in-time snapshot of an instrument's home exchange.
type SessionStatus struct {
	Exchange string  `json:"exchange"`
	IsOpen   bool    `json:"isOpen"`
	Session  string  `json:"session"`           // e.g., "regular", "pre-market", "closed"
	Holiday  *string `json:"holiday,omitempty"` // Holiday name when closed for one
	Timezone string  `json:"timezone"`          // IANA zone of the exchange
}

// Tick is one timestamped price/volume observation for an instrument.
type Tick struct {
	Symbol    string           `json:"symbol"`
	Timestamp time.Time        `json:"timestamp"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Volume    *decimal.Decimal `json:"volume,omitempty"`
}

// -----------------------------------------------------------------------------
// Trading Types
// -----------------------------------------------------------------------------

// Trade is a trade record kept by the backend.
type Trade struct {
	ID       *int64          `json:"id,omitempty"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Position is an open position held at the broker.
type Position struct {
	ID        *int64          `json:"id,omitempty"`
	ConID     string          `json:"conid"` // Broker contract ID
	Symbol    string          `json:"symbol"`
	SecType   string          `json:"secType"`
	Exchange  string          `json:"exchange"`
	Currency  string          `json:"currency"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avgPrice"`
	UpdatedAt string          `json:"updatedAt"`
}

// Bar is one historical OHLCV bar for a position.
type Bar struct {
	ID        int64            `json:"id"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	Timeframe string           `json:"timeframe,omitempty"`
	Open      *decimal.Decimal `json:"open,omitempty"`
	High      *decimal.Decimal `json:"high,omitempty"`
	Low       *decimal.Decimal `json:"low,omitempty"`
	Close     *decimal.Decimal `json:"close,omitempty"`
	Volume    int64            `json:"volume,omitempty"`
	Count     int64            `json:"count,omitempty"`
	WAP       *decimal.Decimal `json:"wap,omitempty"`
}

// OrderAction is the side of a limit order.
type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

// Valid reports whether a is BUY or SELL.
func (a OrderAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Order is a limit order request for a position's contract.
type Order struct {
	ConID    string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Action   OrderAction
}

// LatestLow returns the low of the most recent bar, used to prefill limit orders.
// Bars without a timestamp sort as oldest. Returns false when no bar has a low.
func LatestLow(bars []Bar) (decimal.Decimal, bool) {
	var (
		latest   *Bar
		latestTS time.Time
	)
	for i := range bars {
		b := &bars[i]
		var ts time.Time
		if b.Timestamp != nil {
			ts = *b.Timestamp
		}
		if latest == nil || ts.After(latestTS) {
			latest = b
			latestTS = ts
		}
	}
	if latest == nil || latest.Low == nil {
		return decimal.Zero, false
	}
	return *latest.Low, true
}
