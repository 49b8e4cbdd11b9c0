package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestEventMetaHeaders(t *testing.T) {
	meta := EventMeta{EventID: "evt-1", EventType: "booking.created.v1"}
	msg := kafka.Message{Topic: "ignored", Headers: meta.Headers()}
	if got := ExtractEventMeta(msg); got != meta {
		t.Fatalf("unexpected meta %+v", got)
	}

	fallback := ExtractEventMeta(kafka.Message{Topic: "booking.deleted.v1", Key: []byte("b-1")})
	if fallback.EventID != "b-1" || fallback.EventType != "booking.deleted.v1" {
		t.Fatalf("unexpected fallback meta %+v", fallback)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "e", EventType: "t"}.Headers())
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("traceparent not injected: %v", headers)
	}
	headers = InjectTraceHeaders(ctx, headers)
	if len(headers) != 3 {
		t.Fatalf("expected trace header replaced, not appended: %v", headers)
	}

	carrier := headerCarrier(headers)
	extracted := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), &carrier))
	if extracted.TraceID() != traceID {
		t.Fatalf("trace id not propagated, got %s", extracted.TraceID())
	}
}
