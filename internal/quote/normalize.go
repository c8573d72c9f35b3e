package quote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/marketwatch/internal/model"
)

// ErrNotObject is returned when a payload is not a JSON object.
var ErrNotObject = errors.New("quote payload is not a JSON object")

// Candidate keys, in priority order. Numeric TimestampKeys values are Unix
// epoch seconds when below 1e11 and Unix milliseconds otherwise.
var (
	TimestampKeys = []string{"t", "timestamp"}
	PriceKeys     = []string{"c", "price", "last", "close"}
	VolumeKeys    = []string{"v", "volume", "size"}
	SymbolKeys    = []string{"symbol", "s"}
)

// Normalize decodes raw as a JSON object and converts it to a Tick for symbol.
// now is used when the payload carries no usable timestamp.
func Normalize(symbol string, raw []byte, now time.Time) (model.Tick, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return model.Tick{}, ErrNotObject
	}

	obj, err := DecodeObject(raw)
	if err != nil {
		return model.Tick{}, err
	}
	return FromObject(symbol, obj, now), nil
}

// DecodeObject decodes raw into a map, keeping numbers as json.Number.
func DecodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if obj == nil {
		return nil, ErrNotObject
	}
	return obj, nil
}

// FromObject converts a decoded event object to a Tick for symbol.
func FromObject(symbol string, obj map[string]any, now time.Time) model.Tick {
	tick := model.Tick{
		Symbol:    symbol,
		Timestamp: now,
	}

	for _, k := range TimestampKeys {
		if ts, ok := toTime(obj[k]); ok {
			tick.Timestamp = ts
			break
		}
	}
	if d, ok := firstDecimal(obj, PriceKeys); ok {
		tick.Price = &d
	}
	if d, ok := firstDecimal(obj, VolumeKeys); ok {
		tick.Volume = &d
	}

	return tick
}

// SymbolOf returns the symbol an event object refers to, if any.
func SymbolOf(obj map[string]any) (string, bool) {
	for _, k := range SymbolKeys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func firstDecimal(obj map[string]any, keys []string) (decimal.Decimal, bool) {
	for _, k := range keys {
		if d, ok := toDecimal(obj[k]); ok {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	default:
		return decimal.Decimal{}, false
	}
}

// secondsCutoff separates epoch seconds from epoch milliseconds. Values below
// it read as seconds (up to year 5138); values above as milliseconds (after 1973).
const secondsCutoff = 1e11

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case json.Number:
		return epochToTime(x.String())
	case float64:
		return floatEpoch(x)
	case int64:
		return intEpoch(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		return epochToTime(s)
	default:
		return time.Time{}, false
	}
}

func epochToTime(s string) (time.Time, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return intEpoch(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	return floatEpoch(f)
}

func intEpoch(n int64) time.Time {
	if n > -secondsCutoff && n < secondsCutoff {
		return time.Unix(n, 0)
	}
	return time.UnixMilli(n)
}

func floatEpoch(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if math.Abs(f) < secondsCutoff {
		return time.UnixMilli(int64(math.Round(f * 1000))), true
	}
	return time.UnixMilli(int64(f)), true
}
