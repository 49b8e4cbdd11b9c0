package dashboard

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

func booking(id, date string, at availability.TimeOfDay, st model.Status, updated time.Time) model.Booking {
	d, _ := availability.ParseDate(date)
	return model.Booking{ID: id, Name: "Customer " + id, Date: d, Time: at, Status: st, UpdatedAt: updated}
}

func TestCompute(t *testing.T) {
	// Wednesday 2026-03-04, 12:00 UTC.
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	ts := func(min int) time.Time { return now.Add(-time.Duration(min) * time.Minute) }
	bookings := []model.Booking{
		booking("1", "2026-03-04", 9*60, model.StatusConfirmed, ts(60)),  // completed
		booking("2", "2026-03-04", 15*60, model.StatusConfirmed, ts(50)), // later today
		booking("3", "2026-03-04", 10*60, model.StatusCancelled, ts(40)),
		booking("4", "2026-03-04", 11*60, model.StatusPending, ts(30)),
		booking("5", "2026-03-03", 9*60, model.StatusPending, ts(20)),
		booking("6", "2026-03-09", 9*60, model.StatusPending, ts(10)), // next week
	}

	st := Compute(bookings, now, time.UTC, 100)

	if st.TodaysAppointments != 3 || st.TodayChange != "+2 from yesterday" {
		t.Fatalf("today: %d %q", st.TodaysAppointments, st.TodayChange)
	}
	if st.PendingConfirmations != 3 || st.PendingChange != "+2 from yesterday" {
		t.Fatalf("pending: %d %q", st.PendingConfirmations, st.PendingChange)
	}
	if st.TotalBookings != 6 || st.ConfirmedBookings != 2 || st.Revenue != 200 {
		t.Fatalf("totals: %+v", st)
	}
	// One completed against one cancelled.
	if st.CompletionRate != 50 {
		t.Fatalf("completion rate: %d", st.CompletionRate)
	}
	if st.CancellationsToday != 1 {
		t.Fatalf("cancellations today: %d", st.CancellationsToday)
	}

	if len(st.Week) != 7 || st.Week[0].Name != "Mon" || st.Week[0].Date != "2026-03-02" {
		t.Fatalf("week: %+v", st.Week)
	}
	if st.Week[1].Bookings != 1 || st.Week[2].Bookings != 3 || st.Week[2].Revenue != 200 {
		t.Fatalf("week counts: %+v", st.Week)
	}

	if len(st.RecentActivity) != 5 {
		t.Fatalf("recent activity: %+v", st.RecentActivity)
	}
	first := st.RecentActivity[0]
	if first.BookingID != "6" || first.Type != "new_booking" || first.Details != "Booked for 2026-03-09 at 09:00" {
		t.Fatalf("unexpected first activity %+v", first)
	}
	if st.RecentActivity[2].Type != "cancellation" && st.RecentActivity[3].Type != "cancellation" {
		t.Fatalf("expected a cancellation entry, got %+v", st.RecentActivity)
	}
}

func TestComputeEmpty(t *testing.T) {
	st := Compute(nil, time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), nil, 150)
	if st.CompletionRate != 100 || st.TodayChange != "0 from yesterday" || st.Revenue != 0 {
		t.Fatalf("unexpected empty stats %+v", st)
	}
	// 2026-03-08 is a Sunday, the last day of its week.
	if st.Week[6].Date != "2026-03-08" || st.Week[0].Date != "2026-03-02" {
		t.Fatalf("week boundaries: %+v", st.Week)
	}
	if st.RecentActivity == nil || len(st.RecentActivity) != 0 {
		t.Fatalf("expected empty activity slice, got %#v", st.RecentActivity)
	}
}

func TestComputeUsesBusinessTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 20:00 UTC on the 3rd is already the 4th in loc.
	now := time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC)
	bookings := []model.Booking{booking("1", "2026-03-04", 9*60, model.StatusPending, now)}
	if st := Compute(bookings, now, loc, 150); st.TodaysAppointments != 1 {
		t.Fatalf("expected the booking to count as today in loc, got %+v", st)
	}
}

func TestComputeMonth(t *testing.T) {
	// Wednesday 2026-03-04; the month block starts on Monday 2026-02-09.
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	bookings := []model.Booking{
		booking("1", "2026-02-08", 9*60, model.StatusConfirmed, now), // before the block
		booking("2", "2026-02-09", 9*60, model.StatusConfirmed, now),
		booking("3", "2026-02-17", 9*60, model.StatusPending, now),
		booking("4", "2026-02-18", 9*60, model.StatusCancelled, now),
		booking("5", "2026-03-08", 9*60, model.StatusConfirmed, now),
	}

	st := Compute(bookings, now, time.UTC, 100)

	if len(st.Month) != 4 || st.Month[0].Name != "Week 1" || st.Month[0].Date != "2026-02-09" || st.Month[3].Date != "2026-03-02" {
		t.Fatalf("month: %+v", st.Month)
	}
	want := []struct {
		bookings int
		revenue  float64
	}{{1, 100}, {1, 0}, {0, 0}, {1, 100}}
	for i, w := range want {
		if st.Month[i].Bookings != w.bookings || st.Month[i].Revenue != w.revenue {
			t.Fatalf("month[%d] = %+v, want %+v", i, st.Month[i], w)
		}
	}
	// 1 and 2 are in the past, 5 is still ahead.
	if st.CompletionRate != 67 {
		t.Fatalf("completion rate: %d", st.CompletionRate)
	}
}

func TestBuildMatchesCompute(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	bookings := []model.Booking{
		booking("1", "2025-12-01", 9*60, model.StatusConfirmed, now.Add(-time.Hour)),
		booking("2", "2026-03-04", 9*60, model.StatusConfirmed, now),
		booking("3", "2026-03-03", 9*60, model.StatusPending, now),
	}
	from, to := Window(now, time.UTC)
	if from.Format("2006-01-02") != "2026-02-09" || to.Format("2006-01-02") != "2026-03-08" {
		t.Fatalf("window: %s..%s", from, to)
	}

	totals := model.BookingTotals{Pending: 1, Confirmed: 2, ConfirmedBefore: 1}
	got := Build(totals, bookings[1:], bookings, now, time.UTC, 50)
	want := Compute(bookings, now, time.UTC, 50)
	if got.TotalBookings != want.TotalBookings || got.CompletionRate != want.CompletionRate ||
		got.TodaysAppointments != want.TodaysAppointments || got.Revenue != want.Revenue {
		t.Fatalf("Build %+v != Compute %+v", got, want)
	}
	if got.TotalBookings != 3 || got.CompletionRate != 100 {
		t.Fatalf("unexpected stats %+v", got)
	}
}
