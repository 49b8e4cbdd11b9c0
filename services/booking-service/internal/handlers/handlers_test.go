package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

// 2026-03-02 is a Monday.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	store  *storage.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemory()
	sched := schedule.New(store, store)
	bookings := booking.New(store, sched, booking.Options{
		EnforceSlots: true,
		Now:          func() time.Time { return testNow },
	})

	av := NewAvailabilityHandler(sched, logger)
	av.now = func() time.Time { return testNow }
	admin := NewAdminHandler(store, logger)
	admin.now = func() time.Time { return testNow }

	mux := http.NewServeMux()
	Register(mux, av, NewBookingHandler(bookings, logger), admin)
	srv := httptest.NewServer(httpx.Chain(mux, httpx.WithRequestID, httpx.WithRecover(logger)))
	t.Cleanup(srv.Close)
	return &testAPI{t: t, server: srv, store: store}
}

func (a *testAPI) do(method, path string, body any) (int, map[string]any) {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	resp, err := a.server.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func (a *testAPI) putWeekdaySchedule() {
	a.t.Helper()
	status, body := a.do(http.MethodPut, "/api/v1/availability", map[string]any{
		"weekly": []map[string]any{
			{"day": "monday", "is_open": true, "slots": []string{"9:00", "10:00", "11:00", "13:00"}},
			{"day": "Tue", "is_open": true, "start_time": "09:00", "end_time": "12:00", "slot_duration_minutes": 45, "buffer_minutes": 15},
			{"day": "wednesday", "is_open": true, "windows": []map[string]any{
				{"start_time": "14:00", "end_time": "16:00", "slot_duration_minutes": 30, "buffer_minutes": 0},
			}},
			{"day": "sunday", "is_open": false},
		},
		"overrides": []map[string]any{
			{"date": "2026-03-09", "is_open": false, "reason": "Holiday"},
		},
	})
	if status != http.StatusOK {
		a.t.Fatalf("put schedule: %d %v", status, body)
	}
}

func strs(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

func TestScheduleRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	api.putWeekdaySchedule()

	status, body := api.do(http.MethodGet, "/api/v1/availability/schedule", nil)
	if status != http.StatusOK {
		t.Fatalf("get schedule: %d", status)
	}
	weekly, _ := body["weekly"].([]any)
	if len(weekly) != 4 {
		t.Fatalf("expected 4 weekly rules, got %v", body["weekly"])
	}
	// Rules come back ordered by weekday: sunday, monday, tuesday, wednesday.
	monday, _ := weekly[1].(map[string]any)
	if got := strs(monday["slots"]); len(got) != 4 || got[0] != "09:00" || got[3] != "13:00" {
		t.Fatalf("legacy slots not preserved: %v", monday)
	}
	windows, _ := monday["windows"].([]any)
	if len(windows) != 2 {
		t.Fatalf("expected legacy list to become 2 windows, got %v", monday["windows"])
	}
	tuesday, _ := weekly[2].(map[string]any)
	if got := strs(tuesday["slots"]); len(got) != 3 || got[1] != "10:00" {
		t.Fatalf("generative slots wrong: %v", tuesday["slots"])
	}
}

func TestPutScheduleValidation(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.do(http.MethodPut, "/api/v1/availability", map[string]any{
		"weekly": []map[string]any{
			{"day": "monday", "is_open": true, "start_time": "09:00", "end_time": "17:00", "slot_duration_minutes": 0},
		},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %v", status, body)
	}
	if field, _ := body["field"].(string); field == "" || field[:9] != "weekly[0]" {
		t.Fatalf("expected field under weekly[0], got %v", body)
	}

	status, body = api.do(http.MethodPut, "/api/v1/availability", map[string]any{
		"weekly": []map[string]any{{"day": "funday", "is_open": true}},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown day, got %d %v", status, body)
	}
}

func TestDayAndDates(t *testing.T) {
	api := newTestAPI(t)
	api.putWeekdaySchedule()

	status, body := api.do(http.MethodGet, "/api/v1/availability/2026-03-02", nil)
	if status != http.StatusOK || body["is_open"] != true || body["source"] != "weekly" {
		t.Fatalf("monday: %d %v", status, body)
	}
	status, body = api.do(http.MethodGet, "/api/v1/availability/2026-03-09", nil)
	if status != http.StatusOK || body["is_open"] != false || body["source"] != "override" || body["reason"] != "Holiday" {
		t.Fatalf("override day: %d %v", status, body)
	}
	if status, _ := api.do(http.MethodGet, "/api/v1/availability/03-02-2026", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", status)
	}

	status, body = api.do(http.MethodGet, "/api/v1/availability?from=2026-03-02&to=2026-03-10", nil)
	if status != http.StatusOK {
		t.Fatalf("dates: %d %v", status, body)
	}
	want := []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-10"}
	got := strs(body["dates"])
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if status, _ := api.do(http.MethodGet, "/api/v1/availability?from=2026-03-10&to=2026-03-02", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for reversed range, got %d", status)
	}
}

func TestOverrideAndBlockedDates(t *testing.T) {
	api := newTestAPI(t)
	api.putWeekdaySchedule()

	status, body := api.do(http.MethodPut, "/api/v1/availability/overrides/2026-03-07", map[string]any{
		"is_open": true, "reason": "Saturday clinic", "slots": []string{"10:00", "10:30"},
	})
	if status != http.StatusOK || len(strs(body["slots"])) != 2 {
		t.Fatalf("put override: %d %v", status, body)
	}
	_, body = api.do(http.MethodGet, "/api/v1/availability/2026-03-07", nil)
	if body["source"] != "override" || len(strs(body["slots"])) != 2 {
		t.Fatalf("override not applied: %v", body)
	}

	status, _ = api.do(http.MethodPut, "/api/v1/availability/blocked-dates/2026-03-07", map[string]any{"reason": "Flooded"})
	if status != http.StatusOK {
		t.Fatalf("block: %d", status)
	}
	_, body = api.do(http.MethodGet, "/api/v1/availability/2026-03-07", nil)
	if body["source"] != "blocked" || body["is_open"] != false || body["reason"] != "Flooded" {
		t.Fatalf("blocked date should win over override: %v", body)
	}
	_, body = api.do(http.MethodGet, "/api/v1/availability/blocked-dates?from=2026-03-01&to=2026-03-31", nil)
	if list, _ := body["blocked_dates"].([]any); len(list) != 1 {
		t.Fatalf("expected one blocked date, got %v", body)
	}

	if status, _ := api.do(http.MethodDelete, "/api/v1/availability/blocked-dates/2026-03-07", nil); status != http.StatusNoContent {
		t.Fatalf("unblock: %d", status)
	}
	if status, _ := api.do(http.MethodDelete, "/api/v1/availability/overrides/2026-03-07", nil); status != http.StatusNoContent {
		t.Fatalf("delete override: %d", status)
	}
	if status, _ := api.do(http.MethodDelete, "/api/v1/availability/overrides/2026-03-07", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", status)
	}
}

func TestBookingLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.putWeekdaySchedule()

	req := map[string]any{"name": "Ada", "email": "ada@example.com", "phone": "555", "date": "2026-03-02", "time": "10:00"}
	status, created := api.do(http.MethodPost, "/api/v1/bookings", req)
	if status != http.StatusCreated || created["status"] != "pending" || created["service"] != "General" {
		t.Fatalf("create: %d %v", status, created)
	}
	id, _ := created["id"].(string)

	if status, body := api.do(http.MethodPost, "/api/v1/bookings", req); status != http.StatusConflict {
		t.Fatalf("expected 409 for taken slot, got %d %v", status, body)
	}
	req["time"] = "12:00"
	if status, body := api.do(http.MethodPost, "/api/v1/bookings", req); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for lunch break, got %d %v", status, body)
	}
	req["email"] = "no-at-sign"
	if status, body := api.do(http.MethodPost, "/api/v1/bookings", req); status != http.StatusBadRequest || body["field"] != "email" {
		t.Fatalf("expected 400 on email, got %d %v", status, body)
	}

	_, body := api.do(http.MethodGet, "/api/v1/availability/2026-03-02/slots", nil)
	slots, _ := body["slots"].([]any)
	second, _ := slots[1].(map[string]any)
	if second["time"] != "10:00" || second["is_booked"] != true {
		t.Fatalf("expected 10:00 booked, got %v", slots)
	}

	status, body = api.do(http.MethodPatch, "/api/v1/bookings/"+id, map[string]any{"notes": "window seat", "time": "11:00"})
	if status != http.StatusOK || body["time"] != "11:00" || body["notes"] != "window seat" {
		t.Fatalf("patch: %d %v", status, body)
	}
	if status, _ := api.do(http.MethodPatch, "/api/v1/bookings/"+id, map[string]any{}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", status)
	}

	status, body = api.do(http.MethodPatch, "/api/v1/bookings/"+id+"/status", map[string]any{"status": "confirmed"})
	if status != http.StatusOK || body["status"] != "confirmed" {
		t.Fatalf("status: %d %v", status, body)
	}

	status, body = api.do(http.MethodGet, "/api/v1/bookings?date=2026-03-02&status=confirmed", nil)
	if list, _ := body["bookings"].([]any); status != http.StatusOK || len(list) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}
	if status, _ := api.do(http.MethodGet, "/api/v1/bookings?status=done", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d", status)
	}

	status, body = api.do(http.MethodDelete, "/api/v1/bookings/"+id, nil)
	deleted, _ := body["deleted"].(map[string]any)
	if status != http.StatusOK || deleted["id"] != id {
		t.Fatalf("delete: %d %v", status, body)
	}
	if status, _ := api.do(http.MethodGet, "/api/v1/bookings/"+id, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestSettingsDashboardAndReset(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodPut, "/api/v1/settings", map[string]any{
		"business":      map[string]any{"name": "Studio", "timezone": "Europe/Berlin"},
		"service_price": 80,
	})
	if status != http.StatusOK || body["service_price"] != float64(80) {
		t.Fatalf("put settings: %d %v", status, body)
	}
	notifications, _ := body["notifications"].(map[string]any)
	if notifications["email_new_bookings"] != true {
		t.Fatalf("omitted fields must keep their value: %v", body)
	}
	if status, body := api.do(http.MethodPut, "/api/v1/settings", map[string]any{
		"business": map[string]any{"timezone": "Mars/Olympus"},
	}); status != http.StatusBadRequest || body["field"] != "business.timezone" {
		t.Fatalf("expected timezone validation, got %d %v", status, body)
	}

	status, body = api.do(http.MethodPost, "/api/v1/admin/reset", map[string]any{"mode": "demo"})
	if status != http.StatusOK || body["bookings"] != float64(6) {
		t.Fatalf("reset demo: %d %v", status, body)
	}
	_, settings := api.do(http.MethodGet, "/api/v1/settings", nil)
	if business, _ := settings["business"].(map[string]any); business["name"] != "BookMe Studio" {
		t.Fatalf("reset should replace settings: %v", settings)
	}

	status, stats := api.do(http.MethodGet, "/api/v1/dashboard/stats", nil)
	if status != http.StatusOK {
		t.Fatalf("stats: %d", status)
	}
	if stats["total_bookings"] != float64(6) || stats["todays_appointments"] != float64(2) || stats["revenue"] != float64(450) {
		t.Fatalf("unexpected stats %v", stats)
	}

	if status, _ := api.do(http.MethodPost, "/api/v1/admin/reset", map[string]any{"mode": "wipe"}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", status)
	}
	api.do(http.MethodPost, "/api/v1/admin/reset", map[string]any{"mode": "clean"})
	_, list := api.do(http.MethodGet, "/api/v1/bookings", nil)
	if bookings, _ := list["bookings"].([]any); len(bookings) != 0 {
		t.Fatalf("clean reset should drop bookings, got %v", list)
	}
}

func TestDashboardStatsBeyondListLimit(t *testing.T) {
	api := newTestAPI(t)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := storage.Snapshot{Settings: model.DefaultSettings()}
	for i := 0; i < storage.MaxListLimit+100; i++ {
		snap.Bookings = append(snap.Bookings, model.Booking{
			ID:        fmt.Sprintf("old-%04d", i),
			Name:      "Past customer",
			Date:      old.AddDate(0, 0, i/48),
			Time:      availability.TimeOfDay(i % 48 * 30),
			Status:    model.StatusCancelled,
			CreatedAt: old,
			UpdatedAt: old,
		})
	}
	snap.Bookings = append(snap.Bookings, model.Booking{
		ID:        "today",
		Name:      "Current customer",
		Date:      testNow,
		Time:      15 * 60,
		Status:    model.StatusPending,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err := api.store.Reset(context.Background(), snap); err != nil {
		t.Fatalf("reset: %v", err)
	}

	status, stats := api.do(http.MethodGet, "/api/v1/dashboard/stats", nil)
	if status != http.StatusOK {
		t.Fatalf("stats: %d", status)
	}
	if stats["total_bookings"] != float64(1101) || stats["todays_appointments"] != float64(1) || stats["pending_confirmations"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}
	activity, _ := stats["recent_activity"].([]any)
	if len(activity) != 5 {
		t.Fatalf("recent activity: %v", stats["recent_activity"])
	}
	if first, _ := activity[0].(map[string]any); first["booking_id"] != "today" {
		t.Fatalf("expected the newest booking first, got %v", activity[0])
	}
	if month, _ := stats["month"].([]any); len(month) != 4 {
		t.Fatalf("month: %v", stats["month"])
	}
}
