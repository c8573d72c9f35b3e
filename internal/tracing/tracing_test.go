package tracing

import (
	"context"
	"testing"
)

func TestStartSpanDisabled(t *testing.T) {
	if err := Init(false, "test"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Enabled() {
		t.Fatal("Enabled() = true after Init(false)")
	}

	ctx := context.Background()
	got, span := StartSpan(ctx, "noop")
	if got != ctx {
		t.Error("StartSpan returned a new context while disabled")
	}
	if span.SpanContext().IsValid() {
		t.Error("span context is valid while disabled")
	}
	span.End()
}

func TestInitAndShutdown(t *testing.T) {
	if err := Init(true, "marketwatch-test"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !Enabled() {
		t.Fatal("Enabled() = false after Init(true)")
	}

	_, span := StartSpan(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Error("span context is not valid while enabled")
	}
	span.End()

	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if Enabled() {
		t.Error("Enabled() = true after Shutdown")
	}
}
