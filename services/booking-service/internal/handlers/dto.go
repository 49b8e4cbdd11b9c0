package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

// legacySlotMinutes is the slot length recorded for explicit lists that cannot be
// described by a step, such as a single time.
const legacySlotMinutes = 60

// hoursRequest accepts slot configuration in any of three forms. windows wins over the
// generative fields, which win over an explicit slots list.
type hoursRequest struct {
	Windows             []availability.Window `json:"windows,omitempty"`
	StartTime           string                `json:"start_time,omitempty"`
	EndTime             string                `json:"end_time,omitempty"`
	SlotDurationMinutes int                   `json:"slot_duration_minutes,omitempty"`
	BufferMinutes       int                   `json:"buffer_minutes,omitempty"`
	Slots               []string              `json:"slots,omitempty"`
}

func (h hoursRequest) hours() (availability.Hours, error) {
	switch {
	case len(h.Windows) > 0:
		hours := availability.Hours(h.Windows)
		return hours, hours.Validate()
	case h.StartTime != "" || h.EndTime != "":
		start, err := availability.ParseTimeOfDay(h.StartTime)
		if err != nil {
			return nil, &availability.ValidationError{Field: "start_time", Message: "must be HH:MM"}
		}
		end, err := availability.ParseTimeOfDay(h.EndTime)
		if err != nil {
			return nil, &availability.ValidationError{Field: "end_time", Message: "must be HH:MM"}
		}
		hours := availability.Hours{{Start: start, End: end, SlotMinutes: h.SlotDurationMinutes, BufferMinutes: h.BufferMinutes}}
		if err := hours.Validate(); err != nil {
			return nil, err
		}
		return hours, nil
	case len(h.Slots) > 0:
		times, err := availability.ParseTimes(h.Slots)
		if err != nil {
			return nil, err
		}
		return availability.HoursFromTimes(times, legacySlotMinutes)
	default:
		return nil, nil
	}
}

type weeklyRuleRequest struct {
	Day    string `json:"day"`
	IsOpen bool   `json:"is_open"`
	hoursRequest
}

func (req weeklyRuleRequest) rule() (availability.WeeklyRule, error) {
	day, err := availability.ParseWeekday(req.Day)
	if err != nil {
		return availability.WeeklyRule{}, err
	}
	hours, err := req.hours()
	if err != nil {
		return availability.WeeklyRule{}, err
	}
	return availability.WeeklyRule{Day: day, IsOpen: req.IsOpen, Hours: hours}, nil
}

type overrideRequest struct {
	Date   string `json:"date,omitempty"`
	IsOpen bool   `json:"is_open"`
	Reason string `json:"reason,omitempty"`
	hoursRequest
}

func (req overrideRequest) override(date time.Time) (availability.DateOverride, error) {
	hours, err := req.hours()
	if err != nil {
		return availability.DateOverride{}, err
	}
	return availability.DateOverride{
		Date:   date,
		IsOpen: req.IsOpen,
		Reason: strings.TrimSpace(req.Reason),
		Hours:  hours,
	}, nil
}

type scheduleRequest struct {
	Weekly    []weeklyRuleRequest `json:"weekly"`
	Overrides []overrideRequest   `json:"overrides"`
}

func nested(prefix string, i int, err error) error {
	var verr *availability.ValidationError
	if errors.As(err, &verr) {
		field := fmt.Sprintf("%s[%d]", prefix, i)
		if verr.Field != "" {
			field += "." + verr.Field
		}
		return &availability.ValidationError{Field: field, Message: verr.Message}
	}
	return err
}

type weeklyRuleResponse struct {
	Day     string             `json:"day"`
	IsOpen  bool               `json:"is_open"`
	Windows availability.Hours `json:"windows"`
	Slots   []string           `json:"slots"`
}

type overrideResponse struct {
	Date    string             `json:"date"`
	IsOpen  bool               `json:"is_open"`
	Reason  string             `json:"reason,omitempty"`
	Windows availability.Hours `json:"windows"`
	Slots   []string           `json:"slots"`
}

type scheduleResponse struct {
	Weekly    []weeklyRuleResponse `json:"weekly"`
	Overrides []overrideResponse   `json:"overrides"`
}

// expand renders hours in both canonical and expanded form. Invalid stored hours
// expand to no slots rather than failing the whole listing.
func expand(h availability.Hours) (availability.Hours, []string) {
	if h == nil {
		h = availability.Hours{}
	}
	slots, err := h.Slots()
	if err != nil {
		return h, []string{}
	}
	return h, availability.FormatTimes(slots)
}

func toWeeklyResponse(r availability.WeeklyRule) weeklyRuleResponse {
	windows, slots := expand(r.Hours)
	return weeklyRuleResponse{Day: availability.WeekdayName(r.Day), IsOpen: r.IsOpen, Windows: windows, Slots: slots}
}

func toOverrideResponse(o availability.DateOverride) overrideResponse {
	windows, slots := expand(o.Hours)
	return overrideResponse{
		Date:    availability.FormatDate(o.Date),
		IsOpen:  o.IsOpen,
		Reason:  o.Reason,
		Windows: windows,
		Slots:   slots,
	}
}

type blockedDateRequest struct {
	Reason string `json:"reason"`
}

type blockedDateResponse struct {
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

type dayResponse struct {
	Date   string   `json:"date"`
	IsOpen bool     `json:"is_open"`
	Slots  []string `json:"slots"`
	Reason string   `json:"reason,omitempty"`
	Source string   `json:"source"`
}

func toDayResponse(d availability.DayAvailability) dayResponse {
	return dayResponse{
		Date:   availability.FormatDate(d.Date),
		IsOpen: d.IsOpen,
		Slots:  availability.FormatTimes(d.Slots),
		Reason: d.Reason,
		Source: string(d.Source),
	}
}

type slotStatusResponse struct {
	Time     string           `json:"time"`
	IsBooked bool             `json:"is_booked"`
	Booking  *bookingResponse `json:"booking,omitempty"`
}

type occupancyResponse struct {
	Date   string               `json:"date"`
	IsOpen bool                 `json:"is_open"`
	Reason string               `json:"reason,omitempty"`
	Source string               `json:"source"`
	Slots  []slotStatusResponse `json:"slots"`
}

type bookingResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Service   string `json:"service"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Phone:     b.Phone,
		Date:      availability.FormatDate(b.Date),
		Time:      b.Time.String(),
		Service:   b.Service,
		Status:    string(b.Status),
		Notes:     b.Notes,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type createBookingRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Service string `json:"service"`
	Notes   string `json:"notes"`
}

type patchBookingRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Date    *string `json:"date"`
	Time    *string `json:"time"`
	Service *string `json:"service"`
	Notes   *string `json:"notes"`
	Status  *string `json:"status"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type resetRequest struct {
	Mode string `json:"mode"`
}
