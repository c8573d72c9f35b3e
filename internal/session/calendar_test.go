package session

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/marketwatch/internal/model"
)

func TestMICForSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"AAPL", "XNYS"},
		{"BRK.B", "XNYS"},
		{"VOD.L", "XLON"},
		{"7203.T", "XTKS"},
		{"SHOP.TO", "XTSE"},
		{"0700.HK", "XHKG"},
		{"SAP.de", "XFRA"},
		{"ODD.", "XNYS"},
	}
	for _, tt := range tests {
		if got := MICForSymbol(tt.symbol); got != tt.want {
			t.Errorf("MICForSymbol(%q) = %q, want %q", tt.symbol, got, tt.want)
		}
	}
}

func TestCalendarProbe(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name        string
		now         time.Time
		wantOpen    bool
		wantHoliday bool
	}{
		{"monday mid-session", time.Date(2024, 3, 4, 11, 0, 0, 0, ny), true, false},
		{"monday before open", time.Date(2024, 3, 4, 7, 0, 0, 0, ny), false, false},
		{"saturday", time.Date(2024, 3, 2, 11, 0, 0, 0, ny), false, false},
		{"christmas", time.Date(2024, 12, 25, 11, 0, 0, 0, ny), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCalendarProbe(nil)
			p.now = func() time.Time { return tt.now }

			status, err := p.CheckStatus(context.Background(), model.Instrument{Symbol: "AAPL"})
			if err != nil {
				t.Fatalf("CheckStatus() error = %v", err)
			}
			if status.IsOpen != tt.wantOpen {
				t.Errorf("IsOpen = %v, want %v", status.IsOpen, tt.wantOpen)
			}
			if (status.Holiday != nil) != tt.wantHoliday {
				t.Errorf("Holiday = %v, want set=%v", status.Holiday, tt.wantHoliday)
			}
			if status.Exchange != "XNYS" {
				t.Errorf("Exchange = %q, want XNYS", status.Exchange)
			}
		})
	}
}

func TestCalendarProbe_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewCalendarProbe(nil)
	if _, err := p.CheckStatus(ctx, model.Instrument{Symbol: "AAPL"}); err == nil {
		t.Error("CheckStatus() with canceled context returned nil error")
	}
}
