package stream

import (
	"errors"
	"testing"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    int
		wantErr bool
	}{
		{"single object", `{"symbol":"AAPL","c":1}`, 1, false},
		{"array", `[{"s":"AAPL"},{"s":"MSFT"}]`, 2, false},
		{"array with scalars", `[{"s":"AAPL"}, 5, "x", null]`, 1, false},
		{"envelope", `{"type":"trade","data":[{"s":"AAPL"},{"s":"MSFT"}]}`, 2, false},
		{"data without type is an event", `{"symbol":"AAPL","data":[1]}`, 1, false},
		{"ping envelope", `{"type":"ping"}`, 1, false},
		{"empty", ``, 0, true},
		{"scalar", `42`, 0, true},
		{"garbage", `{oops`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := parseFrame([]byte(tt.frame))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedFrame) {
					t.Errorf("parseFrame() error = %v, want ErrMalformedFrame", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFrame() error = %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("len(events) = %d, want %d", len(events), tt.want)
			}
		})
	}
}
