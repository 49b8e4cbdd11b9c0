// Package dashboard computes the admin overview from booking totals and recent bookings.
package dashboard

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const (
	// RecentActivityLimit is how many bookings the activity feed shows.
	RecentActivityLimit = 5
	monthWeeks          = 4
)

type DayCount struct {
	Name     string  `json:"name"`
	Date     string  `json:"date"`
	Bookings int     `json:"bookings"`
	Revenue  float64 `json:"revenue"`
}

type Activity struct {
	BookingID string    `json:"booking_id"`
	Type      string    `json:"type"`
	User      string    `json:"user"`
	Details   string    `json:"details"`
	At        time.Time `json:"at"`
}

type Stats struct {
	TodaysAppointments   int        `json:"todays_appointments"`
	TodayChange          string     `json:"today_change"`
	PendingConfirmations int        `json:"pending_confirmations"`
	PendingChange        string     `json:"pending_change"`
	TotalBookings        int        `json:"total_bookings"`
	ConfirmedBookings    int        `json:"confirmed_bookings"`
	Revenue              float64    `json:"revenue"`
	CompletionRate       int        `json:"completion_rate"`
	CancellationsToday   int        `json:"cancellations_today"`
	Week                 []DayCount `json:"week"`
	// Month covers the current week and the three before it, oldest first.
	Month          []DayCount `json:"month"`
	RecentActivity []Activity `json:"recent_activity"`
}

// Window returns the dates whose bookings Build needs individually: the four weeks
// ending with the current Monday-based week.
func Window(now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	today := availability.DateOf(now.In(loc))
	monday := today.AddDate(0, 0, -daysSinceMonday(today.Weekday()))
	return monday.AddDate(0, 0, -7*(monthWeeks-1)), monday.AddDate(0, 0, 6)
}

// Compute derives Stats from a complete booking list.
func Compute(bookings []model.Booking, now time.Time, loc *time.Location, price float64) Stats {
	from, to := Window(now, loc)
	var (
		totals model.BookingTotals
		window []model.Booking
	)
	for _, b := range bookings {
		totals.Add(b, from)
		if d := availability.DateOf(b.Date); d.Compare(from) >= 0 && d.Compare(to) <= 0 {
			window = append(window, b)
		}
	}
	return Build(totals, window, bookings, now, loc, price)
}

// Build derives Stats at instant now, with calendar days taken in loc. totals must be
// cut at the start of Window(now, loc), window must hold every booking dated inside it,
// and recent the candidates for the activity feed.
func Build(totals model.BookingTotals, window, recent []model.Booking, now time.Time, loc *time.Location, price float64) Stats {
	if loc == nil {
		loc = time.UTC
	}
	today := availability.DateOf(now.In(loc))
	yesterday := today.AddDate(0, 0, -1)
	monday := today.AddDate(0, 0, -daysSinceMonday(today.Weekday()))
	monthStart, _ := Window(now, loc)

	var (
		yesterdays        int
		yesterdaysPending int
	)
	st := Stats{
		TotalBookings:        totals.All(),
		PendingConfirmations: totals.Pending,
		ConfirmedBookings:    totals.Confirmed,
	}
	completed := totals.ConfirmedBefore
	st.Week = make([]DayCount, 7)
	for i := range st.Week {
		d := monday.AddDate(0, 0, i)
		st.Week[i] = DayCount{Name: d.Weekday().String()[:3], Date: availability.FormatDate(d)}
	}
	st.Month = make([]DayCount, monthWeeks)
	for i := range st.Month {
		st.Month[i] = DayCount{Name: fmt.Sprintf("Week %d", i+1), Date: availability.FormatDate(monthStart.AddDate(0, 0, 7*i))}
	}

	for _, b := range window {
		day := availability.DateOf(b.Date)
		isToday, isYesterday := day.Equal(today), day.Equal(yesterday)

		switch b.Status {
		case model.StatusPending:
			if isYesterday {
				yesterdaysPending++
			}
		case model.StatusConfirmed:
			if b.Time.On(day, loc).Before(now) {
				completed++
			}
		case model.StatusCancelled:
			if isToday {
				st.CancellationsToday++
			}
		}

		if !b.Active() {
			continue
		}
		if isToday {
			st.TodaysAppointments++
		}
		if isYesterday {
			yesterdays++
		}
		revenue := 0.0
		if b.Status == model.StatusConfirmed {
			revenue = price
		}
		if offset := daysBetween(monday, day); offset >= 0 && offset < 7 {
			st.Week[offset].Bookings++
			st.Week[offset].Revenue += revenue
		}
		if offset := daysBetween(monthStart, day); offset >= 0 && offset < 7*monthWeeks {
			st.Month[offset/7].Bookings++
			st.Month[offset/7].Revenue += revenue
		}
	}

	st.Revenue = float64(st.ConfirmedBookings) * price
	st.CompletionRate = 100
	if rated := completed + totals.Cancelled; rated > 0 {
		st.CompletionRate = int(math.Round(float64(completed) / float64(rated) * 100))
	}
	st.TodayChange = change(st.TodaysAppointments, yesterdays)
	st.PendingChange = change(st.PendingConfirmations, yesterdaysPending)
	st.RecentActivity = recentActivity(recent)
	return st
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func daysSinceMonday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func change(current, previous int) string {
	diff := current - previous
	if diff > 0 {
		return fmt.Sprintf("+%d from yesterday", diff)
	}
	return fmt.Sprintf("%d from yesterday", diff)
}

func recentActivity(bookings []model.Booking) []Activity {
	sorted := slices.Clone(bookings)
	slices.SortStableFunc(sorted, func(a, b model.Booking) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if len(sorted) > RecentActivityLimit {
		sorted = sorted[:RecentActivityLimit]
	}

	out := make([]Activity, 0, len(sorted))
	for _, b := range sorted {
		a := Activity{BookingID: b.ID, User: b.Name, At: b.UpdatedAt}
		date := availability.FormatDate(b.Date)
		switch b.Status {
		case model.StatusCancelled:
			a.Type = "cancellation"
			a.Details = "Cancelled appointment for " + date
		case model.StatusPending:
			a.Type = "new_booking"
			a.Details = fmt.Sprintf("Booked for %s at %s", date, b.Time)
		default:
			a.Type = "status_change"
			a.Details = fmt.Sprintf("Confirmed booking for %s at %s", date, b.Time)
		}
		out = append(out, a)
	}
	return out
}
