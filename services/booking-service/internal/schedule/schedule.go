// Package schedule loads the availability layers from the store and runs the resolver over them.
package schedule

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

type Service struct {
	config   storage.ConfigStore
	bookings storage.BookingStore
}

func New(config storage.ConfigStore, bookings storage.BookingStore) *Service {
	return &Service{config: config, bookings: bookings}
}

// Configuration is the editable part of the schedule. Blocked dates are managed separately.
type Configuration struct {
	Weekly    []availability.WeeklyRule
	Overrides []availability.DateOverride
}

// Occupancy is a resolved day with each slot marked free or booked.
type Occupancy struct {
	Day   availability.DayAvailability
	Slots []availability.SlotStatus[model.Booking]
}

// Load reads every layer relevant to [from, to] as one consistent Schedule.
func (s *Service) Load(ctx context.Context, from, to time.Time) (availability.Schedule, error) {
	return s.config.Schedule(ctx, from, to)
}

func (s *Service) Day(ctx context.Context, date time.Time) (availability.DayAvailability, error) {
	date = availability.DateOf(date)
	sched, err := s.Load(ctx, date, date)
	if err != nil {
		return availability.DayAvailability{}, err
	}
	return sched.Day(date)
}

// AvailableDates lists the bookable dates in [from, to].
func (s *Service) AvailableDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	sched, err := s.Load(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return sched.AvailableDates(from, to)
}

func (s *Service) Occupancy(ctx context.Context, date time.Time) (Occupancy, error) {
	day, err := s.Day(ctx, date)
	if err != nil {
		return Occupancy{}, err
	}
	booked, err := s.bookings.BookingsOn(ctx, day.Date)
	if err != nil {
		return Occupancy{}, err
	}
	return Occupancy{
		Day:   day,
		Slots: availability.AnnotateWithBookings(day.Date, day.Slots, booked),
	}, nil
}

func (s *Service) Configuration(ctx context.Context) (Configuration, error) {
	sched, err := s.config.Schedule(ctx, time.Time{}, time.Time{})
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{Weekly: sched.Weekly, Overrides: sched.Overrides}, nil
}

// ReplaceConfiguration validates and stores a complete set of weekly rules and overrides.
func (s *Service) ReplaceConfiguration(ctx context.Context, cfg Configuration) (Configuration, error) {
	if err := availability.ValidateWeekly(cfg.Weekly); err != nil {
		return Configuration{}, err
	}
	if err := availability.ValidateOverrides(cfg.Overrides); err != nil {
		return Configuration{}, err
	}
	if err := s.config.ReplaceSchedule(ctx, cfg.Weekly, cfg.Overrides); err != nil {
		return Configuration{}, err
	}
	return s.Configuration(ctx)
}

func (s *Service) PutOverride(ctx context.Context, o availability.DateOverride) error {
	if err := availability.ValidateOverrides([]availability.DateOverride{o}); err != nil {
		return err
	}
	o.Date = availability.DateOf(o.Date)
	return s.config.UpsertOverride(ctx, o)
}

func (s *Service) RemoveOverride(ctx context.Context, date time.Time) error {
	return s.config.DeleteOverride(ctx, date)
}

func (s *Service) BlockedDates(ctx context.Context, from, to time.Time) ([]availability.BlockedDate, error) {
	return s.config.BlockedDates(ctx, from, to)
}

func (s *Service) Block(ctx context.Context, b availability.BlockedDate) error {
	if err := availability.ValidateBlocked([]availability.BlockedDate{b}); err != nil {
		return err
	}
	b.Date = availability.DateOf(b.Date)
	return s.config.UpsertBlockedDate(ctx, b)
}

func (s *Service) Unblock(ctx context.Context, date time.Time) error {
	return s.config.DeleteBlockedDate(ctx, date)
}
