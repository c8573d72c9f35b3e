package controller

import (
	"fmt"
	"time"

	"github.com/rickgao/marketwatch/internal/model"
)

// State is the acquisition state of the viewed symbol.
type State int

const (
	Idle State = iota
	Deciding
	Polled
	Streaming
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Deciding:
		return "deciding"
	case Polled:
		return "polled"
	case Streaming:
		return "streaming"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent view of the controller's published state.
type Snapshot struct {
	Instrument *model.Instrument    `json:"instrument,omitempty"`
	Symbol     string               `json:"symbol"`
	State      State                `json:"state"`
	History    []model.Tick         `json:"history"`
	Error      *Error               `json:"error,omitempty"`
	Status     *model.SessionStatus `json:"status,omitempty"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}
