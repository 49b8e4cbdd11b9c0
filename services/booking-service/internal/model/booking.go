package model

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

const DefaultService = "General"

type Booking struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Date      time.Time
	Time      availability.TimeOfDay
	Service   string
	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b Booking) SlotKey() (time.Time, availability.TimeOfDay) {
	return b.Date, b.Time
}

// Active reports whether the booking still holds its slot.
func (b Booking) Active() bool {
	return b.Status != StatusCancelled
}

// SameSlot reports whether both bookings target the same date and time.
func (b Booking) SameSlot(o Booking) bool {
	return availability.SameDate(b.Date, o.Date) && b.Time == o.Time
}

// BookingTotals counts stored bookings by status. ConfirmedBefore counts the confirmed
// bookings dated before the cutoff the totals were taken at.
type BookingTotals struct {
	Pending         int
	Confirmed       int
	Cancelled       int
	ConfirmedBefore int
}

func (t BookingTotals) All() int {
	return t.Pending + t.Confirmed + t.Cancelled
}

// Add counts b against cutoff.
func (t *BookingTotals) Add(b Booking, cutoff time.Time) {
	switch b.Status {
	case StatusPending:
		t.Pending++
	case StatusConfirmed:
		t.Confirmed++
		if availability.DateOf(b.Date).Before(availability.DateOf(cutoff)) {
			t.ConfirmedBefore++
		}
	case StatusCancelled:
		t.Cancelled++
	}
}
