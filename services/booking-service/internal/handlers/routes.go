package handlers

import "net/http"

// Register mounts the API on mux.
func Register(mux *http.ServeMux, av *AvailabilityHandler, bk *BookingHandler, admin *AdminHandler) {
	mux.HandleFunc("GET /api/v1/availability", av.Dates)
	mux.HandleFunc("PUT /api/v1/availability", av.PutSchedule)
	mux.HandleFunc("GET /api/v1/availability/schedule", av.GetSchedule)
	mux.HandleFunc("GET /api/v1/availability/{date}", av.Day)
	mux.HandleFunc("GET /api/v1/availability/{date}/slots", av.Slots)
	mux.HandleFunc("PUT /api/v1/availability/overrides/{date}", av.PutOverride)
	mux.HandleFunc("DELETE /api/v1/availability/overrides/{date}", av.DeleteOverride)
	mux.HandleFunc("GET /api/v1/availability/blocked-dates", av.BlockedDates)
	mux.HandleFunc("PUT /api/v1/availability/blocked-dates/{date}", av.BlockDate)
	mux.HandleFunc("DELETE /api/v1/availability/blocked-dates/{date}", av.UnblockDate)

	mux.HandleFunc("GET /api/v1/bookings", bk.List)
	mux.HandleFunc("POST /api/v1/bookings", bk.Create)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bk.Get)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", bk.Update)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/status", bk.SetStatus)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", bk.Delete)

	mux.HandleFunc("GET /api/v1/settings", admin.GetSettings)
	mux.HandleFunc("PUT /api/v1/settings", admin.PutSettings)
	mux.HandleFunc("GET /api/v1/dashboard/stats", admin.Stats)
	mux.HandleFunc("POST /api/v1/admin/reset", admin.Reset)
}
