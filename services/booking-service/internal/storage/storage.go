package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would give a slot a second active booking,
	// or reuse an existing booking id.
	ErrConflict = errors.New("conflict")
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

// ConfigStore persists the availability configuration layers.
// A zero from or to leaves that side of a date range unbounded.
type ConfigStore interface {
	WeeklyRules(ctx context.Context) ([]availability.WeeklyRule, error)
	DateOverrides(ctx context.Context, from, to time.Time) ([]availability.DateOverride, error)
	BlockedDates(ctx context.Context, from, to time.Time) ([]availability.BlockedDate, error)
	// Schedule reads the weekly rules plus the overrides and blocked dates in [from, to]
	// from one consistent view of the store.
	Schedule(ctx context.Context, from, to time.Time) (availability.Schedule, error)
	// ReplaceSchedule swaps weekly rules and overrides in one step; blocked dates are kept.
	ReplaceSchedule(ctx context.Context, weekly []availability.WeeklyRule, overrides []availability.DateOverride) error
	UpsertOverride(ctx context.Context, o availability.DateOverride) error
	DeleteOverride(ctx context.Context, date time.Time) error
	UpsertBlockedDate(ctx context.Context, b availability.BlockedDate) error
	DeleteBlockedDate(ctx context.Context, date time.Time) error
	// PruneBefore deletes overrides and blocked dates strictly before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type BookingStore interface {
	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	BookingsOn(ctx context.Context, date time.Time) ([]model.Booking, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	CreateBooking(ctx context.Context, b model.Booking) error
	UpdateBooking(ctx context.Context, b model.Booking) error
	DeleteBooking(ctx context.Context, id string) (model.Booking, error)
	// BookingStats reads the dashboard inputs from one consistent view of the store.
	BookingStats(ctx context.Context, q StatsQuery) (BookingStats, error)
}

// StatsQuery selects the bookings a dashboard needs in full.
type StatsQuery struct {
	// From and To bound the window of bookings returned individually; totals are cut at From.
	From   time.Time
	To     time.Time
	Recent int
}

type BookingStats struct {
	Totals model.BookingTotals
	// Window holds every booking dated in [From, To], unbounded by MaxListLimit.
	Window []model.Booking
	// Recent holds the most recently updated bookings, newest first.
	Recent []model.Booking
}

type SettingsStore interface {
	Settings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

type Store interface {
	ConfigStore
	BookingStore
	SettingsStore
	// Reset replaces all stored state with snap.
	Reset(ctx context.Context, snap Snapshot) error
	Ping(ctx context.Context) error
}

// Snapshot is the complete state of a store.
type Snapshot struct {
	Weekly    []availability.WeeklyRule
	Overrides []availability.DateOverride
	Blocked   []availability.BlockedDate
	Bookings  []model.Booking
	Settings  model.Settings
}

type BookingFilter struct {
	Date   time.Time
	From   time.Time
	To     time.Time
	Status model.Status
	Limit  int
}

func (f BookingFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

func (f BookingFilter) Match(b model.Booking) bool {
	if !f.Date.IsZero() && !availability.SameDate(f.Date, b.Date) {
		return false
	}
	if !inRange(b.Date, f.From, f.To) {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

func inRange(d, from, to time.Time) bool {
	day := availability.DateOf(d)
	if !from.IsZero() && day.Before(availability.DateOf(from)) {
		return false
	}
	if !to.IsZero() && day.After(availability.DateOf(to)) {
		return false
	}
	return true
}

// SortBookings orders by date, time, then creation.
func SortBookings(bs []model.Booking) {
	slices.SortStableFunc(bs, func(a, b model.Booking) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.Time != b.Time {
			return int(a.Time - b.Time)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func filterBookings(all []model.Booking, f BookingFilter) []model.Booking {
	out := []model.Booking{}
	for _, b := range all {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	SortBookings(out)
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out
}

func statsOf(all []model.Booking, q StatsQuery) BookingStats {
	st := BookingStats{Window: []model.Booking{}}
	for _, b := range all {
		st.Totals.Add(b, q.From)
		if inRange(b.Date, q.From, q.To) {
			st.Window = append(st.Window, b)
		}
	}
	SortBookings(st.Window)
	st.Recent = recentFirst(all, q.Recent)
	return st
}

func recentFirst(all []model.Booking, n int) []model.Booking {
	out := slices.Clone(all)
	slices.SortStableFunc(out, func(a, b model.Booking) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []model.Booking{}
	}
	return out
}

func sortOverrides(list []availability.DateOverride) {
	slices.SortFunc(list, func(a, b availability.DateOverride) int { return a.Date.Compare(b.Date) })
}

func sortBlocked(bs []availability.BlockedDate) {
	slices.SortFunc(bs, func(a, b availability.BlockedDate) int { return a.Date.Compare(b.Date) })
}

func sortWeekly(rs []availability.WeeklyRule) {
	slices.SortFunc(rs, func(a, b availability.WeeklyRule) int { return int(a.Day) - int(b.Day) })
}
