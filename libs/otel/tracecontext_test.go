package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestCarrierRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	c := Capture(ctx)
	if c.Parent != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", c.Parent)
	}

	restored := trace.SpanContextFromContext(c.Attach(context.Background()))
	if restored.TraceID() != traceID || restored.SpanID() != spanID {
		t.Fatalf("trace context not restored: %v", restored)
	}
}

func TestEmptyCarrier(t *testing.T) {
	c := Capture(context.Background())
	if !c.Empty() {
		t.Fatalf("expected nothing captured without a span, got %+v", c)
	}
	ctx := context.Background()
	if got := c.Attach(ctx); got != ctx {
		t.Fatal("expected ctx unchanged for an empty carrier")
	}
}
