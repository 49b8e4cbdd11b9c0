package model

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
)

// DefaultServicePrice is used for revenue figures until the business sets its own price.
const DefaultServicePrice = 150.0

type BusinessProfile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
}

// NotificationSettings are stored preferences only; nothing is delivered from them.
type NotificationSettings struct {
	EmailNewBookings   bool `json:"email_new_bookings"`
	EmailCancellations bool `json:"email_cancellations"`
	EmailReminders     bool `json:"email_reminders"`
	SMSReminders       bool `json:"sms_reminders"`
}

type Settings struct {
	Business      BusinessProfile      `json:"business"`
	Notifications NotificationSettings `json:"notifications"`
	ServicePrice  float64              `json:"service_price"`
}

func DefaultSettings() Settings {
	return Settings{
		Business: BusinessProfile{Timezone: "UTC"},
		Notifications: NotificationSettings{
			EmailNewBookings:   true,
			EmailCancellations: true,
			EmailReminders:     true,
		},
		ServicePrice: DefaultServicePrice,
	}
}

func (s Settings) Validate() error {
	if s.Business.Timezone == "" {
		return &availability.ValidationError{Field: "business.timezone", Message: "is required"}
	}
	if _, err := time.LoadLocation(s.Business.Timezone); err != nil {
		return &availability.ValidationError{Field: "business.timezone", Message: "unknown timezone " + s.Business.Timezone}
	}
	if s.Business.Email != "" && !strings.Contains(s.Business.Email, "@") {
		return &availability.ValidationError{Field: "business.email", Message: "must be an email address"}
	}
	if s.ServicePrice < 0 {
		return &availability.ValidationError{Field: "service_price", Message: "must not be negative"}
	}
	return nil
}

// Location is the business timezone, UTC when unset or unknown.
func (s Settings) Location() *time.Location {
	if loc, err := time.LoadLocation(s.Business.Timezone); err == nil && s.Business.Timezone != "" {
		return loc
	}
	return time.UTC
}
