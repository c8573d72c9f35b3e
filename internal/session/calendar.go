package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/scmhub/calendar"

	"github.com/rickgao/marketwatch/internal/model"
)

// DefaultMIC is used for symbols without a recognised exchange suffix.
const DefaultMIC = "XNYS"

// ErrNoCalendar is returned when no calendar can be loaded for a venue.
var ErrNoCalendar = errors.New("no exchange calendar")

// suffixMIC maps a Yahoo-style symbol suffix to its venue.
var suffixMIC = map[string]string{
	"L":  "XLON",
	"PA": "XPAR",
	"DE": "XFRA",
	"AS": "XAMS",
	"BR": "XBRU",
	"MI": "XMIL",
	"MC": "XMAD",
	"ST": "XSTO",
	"CO": "XCSE",
	"HE": "XHEL",
	"VI": "XWBO",
	"SW": "XSWX",
	"TO": "XTSE",
	"V":  "XTSX",
	"T":  "XTKS",
	"HK": "XHKG",
	"AX": "XASX",
	"KS": "XKRX",
	"TW": "XTAI",
	"SS": "XSHG",
	"SZ": "XSHE",
}

// MICForSymbol returns the venue MIC for symbol. Share-class suffixes such
// as "BRK.B" are not venues and fall back to DefaultMIC.
func MICForSymbol(symbol string) string {
	i := strings.LastIndexByte(symbol, '.')
	if i < 0 || i == len(symbol)-1 {
		return DefaultMIC
	}
	if mic, ok := suffixMIC[strings.ToUpper(symbol[i+1:])]; ok {
		return mic
	}
	return DefaultMIC
}

// CalendarProbe answers session status from exchange calendars without a
// network call.
type CalendarProbe struct {
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	cals map[string]*calendar.Calendar
}

// NewCalendarProbe creates a calendar-backed probe.
func NewCalendarProbe(logger *slog.Logger) *CalendarProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarProbe{
		logger: logger,
		now:    time.Now,
		cals:   make(map[string]*calendar.Calendar),
	}
}

// CheckStatus implements Probe.
func (p *CalendarProbe) CheckStatus(ctx context.Context, inst model.Instrument) (model.SessionStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.SessionStatus{}, err
	}

	mic := MICForSymbol(inst.Symbol)
	cal, err := p.calendar(mic)
	if err != nil {
		return model.SessionStatus{}, fmt.Errorf("check status %s: %w", inst.Symbol, err)
	}

	now := p.now()
	if cal.Loc != nil {
		now = now.In(cal.Loc)
	}

	status := model.SessionStatus{
		Exchange: mic,
		IsOpen:   cal.IsOpen(now),
		Session:  "closed",
	}
	if cal.Loc != nil {
		status.Timezone = cal.Loc.String()
	}

	switch {
	case status.IsOpen:
		status.Session = "regular"
	case isWeekday(now) && !cal.IsBusinessDay(now):
		h := "exchange holiday"
		status.Holiday = &h
	}

	p.logger.Debug("calendar session status",
		"symbol", inst.Symbol,
		"mic", mic,
		"is_open", status.IsOpen,
	)

	return status, nil
}

// calendar returns the cached calendar for mic, loading it on first use.
func (p *CalendarProbe) calendar(mic string) (*calendar.Calendar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cal, ok := p.cals[mic]; ok {
		return cal, nil
	}

	cal := calendar.GetCalendar(strings.ToLower(mic))
	if cal == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoCalendar, mic)
	}
	p.cals[mic] = cal
	return cal, nil
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
