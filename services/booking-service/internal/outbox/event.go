package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// Event types published by the booking service. The Kafka topic name equals the event type.
const (
	BookingCreated          = "booking.created.v1"
	BookingUpdated          = "booking.updated.v1"
	BookingStatusChanged    = "booking.status_changed.v1"
	BookingDeleted          = "booking.deleted.v1"
	AvailabilityReplaced    = "availability.schedule_replaced.v1"
	AggregateBooking        = "booking"
	AggregateAvailability   = "availability"
	availabilityAggregateID = "schedule"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload into an Event.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

// ScheduleReplaced is the event recorded when weekly rules and overrides are swapped.
func ScheduleReplaced(weeklyRules, overrides int) (Event, error) {
	return NewEvent(AggregateAvailability, availabilityAggregateID, AvailabilityReplaced, map[string]int{
		"weekly_rules": weeklyRules,
		"overrides":    overrides,
	})
}

type BookingPayload struct {
	BookingID      string `json:"booking_id"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Service        string `json:"service"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// ForBooking builds a booking event. previous is only reported for status changes.
func ForBooking(eventType string, b model.Booking, previous model.Status, at time.Time) (Event, error) {
	return NewEvent(AggregateBooking, b.ID, eventType, BookingPayload{
		BookingID:      b.ID,
		CustomerName:   b.Name,
		CustomerEmail:  b.Email,
		Date:           availability.FormatDate(b.Date),
		Time:           b.Time.String(),
		Service:        b.Service,
		Status:         string(b.Status),
		PreviousStatus: string(previous),
		OccurredAt:     at.UTC().Format(time.RFC3339),
	})
}

// BookingChanges lists the events an update from prev to next produces.
func BookingChanges(prev, next model.Booking, at time.Time) ([]Event, error) {
	updated, err := ForBooking(BookingUpdated, next, "", at)
	if err != nil {
		return nil, err
	}
	events := []Event{updated}
	if prev.Status != next.Status {
		changed, err := ForBooking(BookingStatusChanged, next, prev.Status, at)
		if err != nil {
			return nil, err
		}
		events = append(events, changed)
	}
	return events, nil
}
