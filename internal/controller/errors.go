package controller

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors
var (
	ErrNotStarted  = errors.New("controller not started")
	ErrStopped     = errors.New("controller stopped")
	ErrEmptySymbol = errors.New("symbol is required")
)

// ErrorKind classifies controller failures.
type ErrorKind int

const (
	StatusProbeFailure ErrorKind = iota + 1
	SubscribeFailure
	StreamFailure
	PollFailure
	MalformedMessage
)

func (k ErrorKind) String() string {
	switch k {
	case StatusProbeFailure:
		return "status_probe_failure"
	case SubscribeFailure:
		return "subscribe_failure"
	case StreamFailure:
		return "stream_failure"
	case PollFailure:
		return "poll_failure"
	case MalformedMessage:
		return "malformed_message"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// Error is the failure surfaced for the viewed symbol.
type Error struct {
	Kind   ErrorKind
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Kind, e.Symbol, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error for the UI.
func (e *Error) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Symbol  string `json:"symbol"`
		Message string `json:"message"`
	}{
		Kind:    e.Kind.String(),
		Symbol:  e.Symbol,
		Message: msg,
	})
}
