package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptbook/libs/otel"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent(AggregateBooking, "b-1", BookingCreated, map[string]string{"id": "b-1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(evt.Payload, &payload); err != nil || payload["id"] != "b-1" {
		t.Fatalf("unexpected payload %s (%v)", evt.Payload, err)
	}

	if _, err := NewEvent(AggregateBooking, "b-1", BookingCreated, func() {}); err == nil {
		t.Fatal("expected marshal error")
	}

	replaced, err := ScheduleReplaced(7, 2)
	if err != nil || replaced.EventType != AvailabilityReplaced || replaced.AggregateType != AggregateAvailability {
		t.Fatalf("unexpected schedule event %+v (%v)", replaced, err)
	}
}

func TestMessageFor(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec := Record{
		ID:          7,
		EventID:     "evt-7",
		AggregateID: "b-1",
		EventType:   BookingStatusChanged,
		Payload:     []byte(`{"status":"confirmed"}`),
		Trace:       otelx.Carrier{Parent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		CreatedAt:   created,
	}

	msg := messageFor(context.Background(), rec)
	if msg.Topic != BookingStatusChanged || string(msg.Key) != "b-1" || !msg.Time.Equal(created) {
		t.Fatalf("unexpected message %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-7" || meta.EventType != BookingStatusChanged {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if got := kafkax.HeaderValue(msg.Headers, "traceparent"); got != rec.Trace.Parent {
		t.Fatalf("trace context not forwarded, got %q", got)
	}
}

func TestBookingChanges(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	prev := model.Booking{ID: "b-1", Name: "Ada", Date: at, Time: 600, Status: model.StatusPending}
	next := prev
	next.Notes = "window seat"

	events, err := BookingChanges(prev, next, at)
	if err != nil || len(events) != 1 || events[0].EventType != BookingUpdated {
		t.Fatalf("expected a single update event, got %+v (%v)", events, err)
	}

	next.Status = model.StatusConfirmed
	events, err = BookingChanges(prev, next, at)
	if err != nil || len(events) != 2 || events[1].EventType != BookingStatusChanged {
		t.Fatalf("expected update and status change, got %+v (%v)", events, err)
	}
	var payload BookingPayload
	if err := json.Unmarshal(events[1].Payload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.PreviousStatus != "pending" || payload.Status != "confirmed" || payload.Time != "10:00" || payload.Date != "2026-03-02" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
