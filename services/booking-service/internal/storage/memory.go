package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// Memory is a process-local Store.
type Memory struct {
	mu        sync.RWMutex
	weekly    map[time.Weekday]availability.WeeklyRule
	overrides map[string]availability.DateOverride
	blocked   map[string]availability.BlockedDate
	bookings  map[string]model.Booking
	settings  model.Settings
}

func NewMemory() *Memory {
	return &Memory{
		weekly:    map[time.Weekday]availability.WeeklyRule{},
		overrides: map[string]availability.DateOverride{},
		blocked:   map[string]availability.BlockedDate{},
		bookings:  map[string]model.Booking{},
		settings:  model.DefaultSettings(),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) WeeklyRules(context.Context) ([]availability.WeeklyRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.weeklyLocked(), nil
}

func (m *Memory) DateOverrides(_ context.Context, from, to time.Time) ([]availability.DateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overridesLocked(from, to), nil
}

func (m *Memory) BlockedDates(_ context.Context, from, to time.Time) ([]availability.BlockedDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blockedLocked(from, to), nil
}

func (m *Memory) Schedule(_ context.Context, from, to time.Time) (availability.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return availability.Schedule{
		Weekly:    m.weeklyLocked(),
		Overrides: m.overridesLocked(from, to),
		Blocked:   m.blockedLocked(from, to),
	}, nil
}

func (m *Memory) weeklyLocked() []availability.WeeklyRule {
	out := make([]availability.WeeklyRule, 0, len(m.weekly))
	for _, r := range m.weekly {
		r.Hours = slices.Clone(r.Hours)
		out = append(out, r)
	}
	sortWeekly(out)
	return out
}

func (m *Memory) overridesLocked(from, to time.Time) []availability.DateOverride {
	out := []availability.DateOverride{}
	for _, o := range m.overrides {
		if inRange(o.Date, from, to) {
			o.Hours = slices.Clone(o.Hours)
			out = append(out, o)
		}
	}
	sortOverrides(out)
	return out
}

func (m *Memory) blockedLocked(from, to time.Time) []availability.BlockedDate {
	out := []availability.BlockedDate{}
	for _, b := range m.blocked {
		if inRange(b.Date, from, to) {
			out = append(out, b)
		}
	}
	sortBlocked(out)
	return out
}

func (m *Memory) ReplaceSchedule(_ context.Context, weekly []availability.WeeklyRule, overrides []availability.DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekly = map[time.Weekday]availability.WeeklyRule{}
	for _, r := range weekly {
		r.Hours = slices.Clone(r.Hours)
		m.weekly[r.Day] = r
	}
	m.overrides = map[string]availability.DateOverride{}
	for _, o := range overrides {
		o.Date = availability.DateOf(o.Date)
		o.Hours = slices.Clone(o.Hours)
		m.overrides[availability.FormatDate(o.Date)] = o
	}
	return nil
}

func (m *Memory) UpsertOverride(_ context.Context, o availability.DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Date = availability.DateOf(o.Date)
	o.Hours = slices.Clone(o.Hours)
	m.overrides[availability.FormatDate(o.Date)] = o
	return nil
}

func (m *Memory) DeleteOverride(_ context.Context, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := availability.FormatDate(date)
	if _, ok := m.overrides[key]; !ok {
		return ErrNotFound
	}
	delete(m.overrides, key)
	return nil
}

func (m *Memory) UpsertBlockedDate(_ context.Context, b availability.BlockedDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Date = availability.DateOf(b.Date)
	m.blocked[availability.FormatDate(b.Date)] = b
	return nil
}

func (m *Memory) DeleteBlockedDate(_ context.Context, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := availability.FormatDate(date)
	if _, ok := m.blocked[key]; !ok {
		return ErrNotFound
	}
	delete(m.blocked, key)
	return nil
}

func (m *Memory) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff = availability.DateOf(cutoff)
	var n int64
	for key, o := range m.overrides {
		if o.Date.Before(cutoff) {
			delete(m.overrides, key)
			n++
		}
	}
	for key, b := range m.blocked {
		if b.Date.Before(cutoff) {
			delete(m.blocked, key)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListBookings(_ context.Context, f BookingFilter) ([]model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterBookings(m.allLocked(), f), nil
}

func (m *Memory) BookingStats(_ context.Context, q StatsQuery) (BookingStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return statsOf(m.allLocked(), q), nil
}

func (m *Memory) allLocked() []model.Booking {
	all := make([]model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		all = append(all, b)
	}
	return all
}

func (m *Memory) BookingsOn(ctx context.Context, date time.Time) ([]model.Booking, error) {
	return m.ListBookings(ctx, BookingFilter{Date: date, Limit: MaxListLimit})
}

func (m *Memory) GetBooking(_ context.Context, id string) (model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) CreateBooking(_ context.Context, b model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; ok {
		return ErrConflict
	}
	if m.slotHeldLocked(b) {
		return ErrConflict
	}
	b.Date = availability.DateOf(b.Date)
	m.bookings[b.ID] = b
	return nil
}

func (m *Memory) UpdateBooking(_ context.Context, b model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	if m.slotHeldLocked(b) {
		return ErrConflict
	}
	b.Date = availability.DateOf(b.Date)
	m.bookings[b.ID] = b
	return nil
}

func (m *Memory) DeleteBooking(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	delete(m.bookings, id)
	return b, nil
}

// slotHeldLocked reports whether another active booking already holds b's slot.
func (m *Memory) slotHeldLocked(b model.Booking) bool {
	if !b.Active() {
		return false
	}
	for id, other := range m.bookings {
		if id != b.ID && other.Active() && other.SameSlot(b) {
			return true
		}
	}
	return false
}

func (m *Memory) Settings(context.Context) (model.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *Memory) SaveSettings(_ context.Context, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

func (m *Memory) Reset(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekly = map[time.Weekday]availability.WeeklyRule{}
	for _, r := range snap.Weekly {
		m.weekly[r.Day] = r
	}
	m.overrides = map[string]availability.DateOverride{}
	for _, o := range snap.Overrides {
		o.Date = availability.DateOf(o.Date)
		m.overrides[availability.FormatDate(o.Date)] = o
	}
	m.blocked = map[string]availability.BlockedDate{}
	for _, b := range snap.Blocked {
		b.Date = availability.DateOf(b.Date)
		m.blocked[availability.FormatDate(b.Date)] = b
	}
	m.bookings = map[string]model.Booking{}
	for _, b := range snap.Bookings {
		b.Date = availability.DateOf(b.Date)
		m.bookings[b.ID] = b
	}
	m.settings = snap.Settings
	return nil
}

var _ Store = (*Memory)(nil)
