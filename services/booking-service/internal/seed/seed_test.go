package seed

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

func TestDefaultWeekly(t *testing.T) {
	rules := DefaultWeekly()
	if err := availability.ValidateWeekly(rules); err != nil {
		t.Fatalf("default weekly invalid: %v", err)
	}
	if len(rules) != 7 {
		t.Fatalf("expected a rule per weekday, got %d", len(rules))
	}
	// 2026-03-02 is a Monday, 2026-03-07 a Saturday.
	monday, _ := availability.ParseDate("2026-03-02")
	day, err := availability.ResolveDay(monday, rules, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := availability.FormatTimes(day.Slots); len(got) != 7 || got[0] != "09:00" || got[3] != "13:00" || got[6] != "16:00" {
		t.Fatalf("unexpected weekday slots %v", got)
	}
	saturday, _ := availability.ParseDate("2026-03-07")
	if day, _ := availability.ResolveDay(saturday, rules, nil, nil); day.IsOpen {
		t.Fatalf("weekend should be closed: %+v", day)
	}
}

func TestDemoLoadsIntoStore(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	snap := Demo(now)
	if len(snap.Bookings) != 6 || len(snap.Blocked) != 2 || len(snap.Overrides) != 1 {
		t.Fatalf("unexpected demo sizes: %d bookings, %d blocked, %d overrides", len(snap.Bookings), len(snap.Blocked), len(snap.Overrides))
	}
	if again := Demo(now); again.Bookings[0].ID != snap.Bookings[0].ID {
		t.Fatal("demo ids should be stable")
	}

	mem := storage.NewMemory()
	ctx := context.Background()
	if err := mem.Reset(ctx, snap); err != nil {
		t.Fatalf("reset: %v", err)
	}
	todays, _ := mem.BookingsOn(ctx, now)
	if len(todays) != 3 {
		t.Fatalf("expected 3 bookings today, got %d", len(todays))
	}

	sched := availability.Schedule{Weekly: snap.Weekly, Overrides: snap.Overrides, Blocked: snap.Blocked}
	custom, err := sched.Day(now.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("resolve custom date: %v", err)
	}
	if custom.Source != availability.SourceOverride || availability.FormatTimes(custom.Slots)[1] != "09:00" {
		t.Fatalf("unexpected custom day %+v", custom)
	}
	blocked, _ := sched.Day(now.AddDate(0, 0, 5))
	if blocked.IsOpen || blocked.Reason != "Public Holiday" {
		t.Fatalf("unexpected blocked day %+v", blocked)
	}
}

func TestFor(t *testing.T) {
	clean, err := For(ModeClean, time.Now())
	if err != nil || len(clean.Bookings) != 0 || clean.Settings.ServicePrice != 150 {
		t.Fatalf("clean: %+v (%v)", clean, err)
	}
	if _, err := For("everything", time.Now()); !availability.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
