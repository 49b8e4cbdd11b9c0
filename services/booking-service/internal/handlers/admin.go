package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/dashboard"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/seed"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

// AdminHandler serves settings, dashboard statistics and the dataset reset.
type AdminHandler struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewAdminHandler(store storage.Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger, now: time.Now}
}

func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Settings(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

// PutSettings merges the body over the stored settings, so omitted fields keep their value.
func (h *AdminHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Settings(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := httpx.DecodeJSON(r, &s); err != nil {
		writeBadBody(w, err)
		return
	}
	if err := s.Validate(); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.store.SaveSettings(r.Context(), s); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.store.Settings(ctx)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	now, loc := h.now(), s.Location()
	from, to := dashboard.Window(now, loc)
	bs, err := h.store.BookingStats(ctx, storage.StatsQuery{From: from, To: to, Recent: dashboard.RecentActivityLimit})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dashboard.Build(bs.Totals, bs.Window, bs.Recent, now, loc, s.ServicePrice))
}

// Reset replaces all data with the demo or the clean dataset.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	snap, err := seed.For(req.Mode, h.now())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.store.Reset(r.Context(), snap); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.logger.Warn("data reset", "mode", req.Mode, "request_id", httpx.RequestIDFromContext(r.Context()))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"mode":          req.Mode,
		"bookings":      len(snap.Bookings),
		"blocked_dates": len(snap.Blocked),
		"overrides":     len(snap.Overrides),
	})
}
