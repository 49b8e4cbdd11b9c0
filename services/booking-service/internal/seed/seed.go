// Package seed builds the datasets the admin reset endpoint loads.
package seed

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

const (
	ModeDemo  = "demo"
	ModeClean = "clean"
)

// DefaultWeekdaySlots is the classic weekday list: hourly from 09:00 with a lunch break at 12:00.
var DefaultWeekdaySlots = []availability.TimeOfDay{9 * 60, 10 * 60, 11 * 60, 13 * 60, 14 * 60, 15 * 60, 16 * 60}

// demoNamespace keeps demo booking ids stable across resets.
var demoNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("apptbook:demo"))

// For returns the snapshot for mode at now.
func For(mode string, now time.Time) (storage.Snapshot, error) {
	switch mode {
	case ModeDemo:
		return Demo(now), nil
	case ModeClean:
		return Clean(), nil
	default:
		return storage.Snapshot{}, &availability.ValidationError{Field: "mode", Message: "must be demo or clean"}
	}
}

// Clean is an open Monday to Friday schedule with nothing booked.
func Clean() storage.Snapshot {
	return storage.Snapshot{
		Weekly:   DefaultWeekly(),
		Settings: model.DefaultSettings(),
	}
}

func DefaultWeekly() []availability.WeeklyRule {
	hours, err := availability.HoursFromTimes(DefaultWeekdaySlots, 60)
	if err != nil {
		panic(fmt.Sprintf("seed: default weekday slots: %v", err))
	}
	rules := make([]availability.WeeklyRule, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		open := d != time.Saturday && d != time.Sunday
		r := availability.WeeklyRule{Day: d, IsOpen: open}
		if open {
			r.Hours = append(availability.Hours(nil), hours...)
		}
		rules = append(rules, r)
	}
	return rules
}

// Demo adds a custom date, two blocked dates and sample bookings around now.
func Demo(now time.Time) storage.Snapshot {
	now = now.UTC()
	today := availability.DateOf(now)
	day := func(offset int) time.Time { return today.AddDate(0, 0, offset) }

	snap := Clean()
	snap.Settings.Business = model.BusinessProfile{
		Name:     "BookMe Studio",
		Email:    "hello@bookme.example",
		Phone:    "+1 555 0100",
		Timezone: "UTC",
	}
	snap.Overrides = []availability.DateOverride{{
		Date:   day(7),
		IsOpen: true,
		Reason: "Extended hours",
		Hours:  availability.Hours{{Start: 8 * 60, End: 16 * 60, SlotMinutes: 45, BufferMinutes: 15}},
	}}
	snap.Blocked = []availability.BlockedDate{
		{Date: day(5), Reason: "Public Holiday"},
		{Date: day(14), Reason: "Staff Training Day"},
	}

	samples := []struct {
		name, email, phone string
		offset             int
		at                 availability.TimeOfDay
		service            string
		status             model.Status
		notes              string
	}{
		{"John Doe", "john@example.com", "+1234567890", 0, 10 * 60, "Consultation", model.StatusConfirmed, "First-time client"},
		{"Jane Smith", "jane@example.com", "+1987654321", 0, 14 * 60, "Follow-up", model.StatusPending, "Requesting same specialist as before"},
		{"Bob Johnson", "bob@example.com", "+1122334455", 0, 9 * 60, "Assessment", model.StatusCancelled, "Client asked to reschedule"},
		{"Alice Williams", "alice@example.com", "+1555666777", 1, 13 * 60, "Consultation", model.StatusConfirmed, ""},
		{"Charlie Brown", "charlie@example.com", "+1777888999", 2, 11 * 60, "Follow-up", model.StatusConfirmed, "Requires parking space"},
		{"Diana Prince", "diana@example.com", "+1999000111", 3, 16 * 60, "Assessment", model.StatusPending, "New client referral"},
	}
	for i, s := range samples {
		stamp := now.Add(-time.Duration(len(samples)-i) * 10 * time.Minute)
		snap.Bookings = append(snap.Bookings, model.Booking{
			ID:        uuid.NewSHA1(demoNamespace, []byte(fmt.Sprintf("booking-%d", i+1))).String(),
			Name:      s.name,
			Email:     s.email,
			Phone:     s.phone,
			Date:      day(s.offset),
			Time:      s.at,
			Service:   s.service,
			Status:    s.status,
			Notes:     s.notes,
			CreatedAt: stamp,
			UpdatedAt: stamp,
		})
	}
	return snap
}
