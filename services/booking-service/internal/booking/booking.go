// Package booking owns the booking lifecycle: creation, partial edits, status changes and
// deletion, with slot checks against the resolved schedule.
package booking

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

var (
	// ErrSlotTaken means another active booking already holds the date and time.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrSlotUnavailable means the time is not one of the slots the schedule offers that day.
	ErrSlotUnavailable = errors.New("slot not available")
)

// DayResolver is satisfied by *schedule.Service.
type DayResolver interface {
	Day(ctx context.Context, date time.Time) (availability.DayAvailability, error)
}

type Options struct {
	// EnforceSlots rejects times the schedule does not offer.
	EnforceSlots bool
	Now          func() time.Time
	NewID        func() string
}

type Service struct {
	store        storage.BookingStore
	days         DayResolver
	enforceSlots bool
	now          func() time.Time
	newID        func() string
}

func New(store storage.BookingStore, days DayResolver, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		store:        store,
		days:         days,
		enforceSlots: opts.EnforceSlots && days != nil,
		now:          opts.Now,
		newID:        opts.NewID,
	}
}

type CreateInput struct {
	Name    string
	Email   string
	Phone   string
	Date    string
	Time    string
	Service string
	Notes   string
}

// Patch holds the fields to change; nil leaves a field as it is.
type Patch struct {
	Name    *string
	Email   *string
	Phone   *string
	Date    *string
	Time    *string
	Service *string
	Notes   *string
	Status  *string
}

func (p Patch) empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Date == nil &&
		p.Time == nil && p.Service == nil && p.Notes == nil && p.Status == nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return model.Booking{}, err
	}
	at, err := parseTime(in.Time)
	if err != nil {
		return model.Booking{}, err
	}
	now := s.now().UTC()
	b := model.Booking{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Date:      date,
		Time:      at,
		Service:   strings.TrimSpace(in.Service),
		Status:    model.StatusPending,
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if b.Service == "" {
		b.Service = model.DefaultService
	}
	if err := validateContact(b); err != nil {
		return model.Booking{}, err
	}
	if err := s.checkSlot(ctx, b); err != nil {
		return model.Booking{}, err
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return model.Booking{}, translate(err)
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *Service) List(ctx context.Context, f storage.BookingFilter) ([]model.Booking, error) {
	return s.store.ListBookings(ctx, f)
}

// Update applies p to booking id. Moving the booking, or reactivating a cancelled one,
// re-checks the target slot.
func (s *Service) Update(ctx context.Context, id string, p Patch) (model.Booking, error) {
	if p.empty() {
		return model.Booking{}, &availability.ValidationError{Message: "no fields to update"}
	}
	prev, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}

	next := prev
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		next.Email = strings.TrimSpace(*p.Email)
	}
	if p.Phone != nil {
		next.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Service != nil {
		next.Service = strings.TrimSpace(*p.Service)
		if next.Service == "" {
			next.Service = model.DefaultService
		}
	}
	if p.Notes != nil {
		next.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Date != nil {
		if next.Date, err = parseDate(*p.Date); err != nil {
			return model.Booking{}, err
		}
	}
	if p.Time != nil {
		if next.Time, err = parseTime(*p.Time); err != nil {
			return model.Booking{}, err
		}
	}
	if p.Status != nil {
		st, ok := model.ParseStatus(*p.Status)
		if !ok {
			return model.Booking{}, &availability.ValidationError{Field: "status", Message: "must be pending, confirmed or cancelled"}
		}
		next.Status = st
	}
	if err := validateContact(next); err != nil {
		return model.Booking{}, err
	}

	moved := !next.SameSlot(prev)
	reactivated := !prev.Active() && next.Active()
	if moved || reactivated {
		if err := s.checkSlot(ctx, next); err != nil {
			return model.Booking{}, err
		}
	}

	next.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateBooking(ctx, next); err != nil {
		return model.Booking{}, translate(err)
	}
	return next, nil
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (model.Booking, error) {
	if strings.TrimSpace(status) == "" {
		return model.Booking{}, &availability.ValidationError{Field: "status", Message: "is required"}
	}
	return s.Update(ctx, id, Patch{Status: &status})
}

func (s *Service) Delete(ctx context.Context, id string) (model.Booking, error) {
	return s.store.DeleteBooking(ctx, id)
}

// checkSlot verifies an active booking targets an offered slot. Uniqueness itself is
// decided by the store so concurrent writers cannot both win.
func (s *Service) checkSlot(ctx context.Context, b model.Booking) error {
	if !b.Active() || !s.enforceSlots {
		return nil
	}
	day, err := s.days.Day(ctx, b.Date)
	if err != nil {
		return err
	}
	if !day.IsOpen || !slices.Contains(day.Slots, b.Time) {
		return ErrSlotUnavailable
	}
	return nil
}

func validateContact(b model.Booking) error {
	switch {
	case b.Name == "":
		return &availability.ValidationError{Field: "name", Message: "is required"}
	case b.Email == "":
		return &availability.ValidationError{Field: "email", Message: "is required"}
	case !strings.Contains(b.Email, "@"):
		return &availability.ValidationError{Field: "email", Message: "must be an email address"}
	case b.Phone == "":
		return &availability.ValidationError{Field: "phone", Message: "is required"}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, &availability.ValidationError{Field: "date", Message: "is required"}
	}
	d, err := availability.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &availability.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return d, nil
}

func parseTime(s string) (availability.TimeOfDay, error) {
	if strings.TrimSpace(s) == "" {
		return 0, &availability.ValidationError{Field: "time", Message: "is required"}
	}
	t, err := availability.ParseSlotTime(strings.TrimSpace(s))
	if err != nil {
		return 0, &availability.ValidationError{Field: "time", Message: "must be HH:MM"}
	}
	return t, nil
}

func translate(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return ErrSlotTaken
	}
	return err
}
