package availability

import (
	"testing"
	"time"
)

type fakeBooking struct {
	id        string
	date      time.Time
	at        TimeOfDay
	cancelled bool
}

func (b fakeBooking) SlotKey() (time.Time, TimeOfDay) { return b.date, b.at }
func (b fakeBooking) Active() bool                     { return !b.cancelled }

func TestAnnotateWithBookings(t *testing.T) {
	day := mustDate(t, "2026-03-02")
	slots, err := GenerateSlots(540, 720, 60, 0)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	bookings := []fakeBooking{
		{id: "cancelled", date: day, at: 540, cancelled: true},
		{id: "first", date: day, at: 600},
		{id: "second", date: day, at: 600},
		{id: "other-day", date: day.AddDate(0, 0, 1), at: 660},
		{id: "late", date: day, at: 540},
	}

	got := AnnotateWithBookings(day, slots, bookings)
	if len(got) != 3 {
		t.Fatalf("expected 3 annotated slots, got %d", len(got))
	}
	if !got[0].IsBooked || got[0].Booking.id != "late" {
		t.Fatalf("09:00 must be held by the active booking, got %+v", got[0])
	}
	if !got[1].IsBooked || got[1].Booking.id != "first" {
		t.Fatalf("10:00 must report the first match, got %+v", got[1])
	}
	if got[2].IsBooked || got[2].Booking != nil {
		t.Fatalf("11:00 must be free, got %+v", got[2])
	}
}

func TestAnnotateWithBookings_EmptyBookings(t *testing.T) {
	slots, err := GenerateSlots(540, 1020, 30, 15)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	got := AnnotateWithBookings[fakeBooking](mustDate(t, "2026-03-02"), slots, nil)
	if len(got) != len(slots) {
		t.Fatalf("expected %d slots, got %d", len(slots), len(got))
	}
	for i, s := range got {
		if s.IsBooked || s.Booking != nil || s.Time != slots[i] {
			t.Fatalf("slot %d unexpectedly annotated: %+v", i, s)
		}
	}
}
