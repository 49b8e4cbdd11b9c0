package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/schedule"
)

// defaultRangeDays is the window listed when the caller gives no "to".
const defaultRangeDays = 30

type AvailabilityHandler struct {
	schedule *schedule.Service
	logger   *slog.Logger
	now      func() time.Time
}

func NewAvailabilityHandler(sched *schedule.Service, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{schedule: sched, logger: logger, now: time.Now}
}

// Dates lists bookable dates between from and to (inclusive).
func (h *AvailabilityHandler) Dates(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from", availability.DateOf(h.now().UTC()))
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", from.AddDate(0, 0, defaultRangeDays))
	if !ok {
		return
	}

	dates, err := h.schedule.AvailableDates(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, availability.FormatDate(d))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"from":  availability.FormatDate(from),
		"to":    availability.FormatDate(to),
		"dates": out,
	})
}

func (h *AvailabilityHandler) Day(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	day, err := h.schedule.Day(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDayResponse(day))
}

// Slots is the day with each slot annotated with the booking holding it.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	occ, err := h.schedule.Occupancy(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := occupancyResponse{
		Date:   availability.FormatDate(occ.Day.Date),
		IsOpen: occ.Day.IsOpen,
		Reason: occ.Day.Reason,
		Source: string(occ.Day.Source),
		Slots:  make([]slotStatusResponse, 0, len(occ.Slots)),
	}
	for _, s := range occ.Slots {
		item := slotStatusResponse{Time: s.Time.String(), IsBooked: s.IsBooked}
		if s.Booking != nil {
			b := toBookingResponse(*s.Booking)
			item.Booking = &b
		}
		resp.Slots = append(resp.Slots, item)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.schedule.Configuration(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toScheduleResponse(cfg))
}

// PutSchedule replaces every weekly rule and override. Blocked dates are not touched.
func (h *AvailabilityHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	var cfg schedule.Configuration
	for i, wr := range req.Weekly {
		rule, err := wr.rule()
		if err != nil {
			writeServiceError(w, r, h.logger, nested("weekly", i, err))
			return
		}
		cfg.Weekly = append(cfg.Weekly, rule)
	}
	for i, ov := range req.Overrides {
		date, err := availability.ParseDate(ov.Date)
		if err != nil {
			writeServiceError(w, r, h.logger, nested("overrides", i, err))
			return
		}
		o, err := ov.override(date)
		if err != nil {
			writeServiceError(w, r, h.logger, nested("overrides", i, err))
			return
		}
		cfg.Overrides = append(cfg.Overrides, o)
	}

	saved, err := h.schedule.ReplaceConfiguration(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toScheduleResponse(saved))
}

func (h *AvailabilityHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	o, err := req.override(date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.schedule.PutOverride(r.Context(), o); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOverrideResponse(o))
}

func (h *AvailabilityHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	if err := h.schedule.RemoveOverride(r.Context(), date); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) BlockedDates(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", time.Time{})
	if !ok {
		return
	}
	blocked, err := h.schedule.BlockedDates(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]blockedDateResponse, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, blockedDateResponse{Date: availability.FormatDate(b.Date), Reason: b.Reason})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"blocked_dates": out})
}

// BlockDate accepts an optional {"reason"} body.
func (h *AvailabilityHandler) BlockDate(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	var req blockedDateRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			writeBadBody(w, err)
			return
		}
	}
	b := availability.BlockedDate{Date: date, Reason: req.Reason}
	if err := h.schedule.Block(r.Context(), b); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, blockedDateResponse{Date: availability.FormatDate(date), Reason: req.Reason})
}

func (h *AvailabilityHandler) UnblockDate(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	if err := h.schedule.Unblock(r.Context(), date); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toScheduleResponse(cfg schedule.Configuration) scheduleResponse {
	resp := scheduleResponse{
		Weekly:    make([]weeklyRuleResponse, 0, len(cfg.Weekly)),
		Overrides: make([]overrideResponse, 0, len(cfg.Overrides)),
	}
	for _, rule := range cfg.Weekly {
		resp.Weekly = append(resp.Weekly, toWeeklyResponse(rule))
	}
	for _, o := range cfg.Overrides {
		resp.Overrides = append(resp.Overrides, toOverrideResponse(o))
	}
	return resp
}

func pathDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	d, err := availability.ParseDate(r.PathValue("date"))
	if err != nil {
		httpx.WriteFieldError(w, http.StatusBadRequest, "date", "must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func queryDate(w http.ResponseWriter, r *http.Request, key string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	d, err := availability.ParseDate(raw)
	if err != nil {
		httpx.WriteFieldError(w, http.StatusBadRequest, key, "must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
