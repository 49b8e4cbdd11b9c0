package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

type BookingHandler struct {
	bookings *booking.Service
	logger   *slog.Logger
}

func NewBookingHandler(bookings *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	var f storage.BookingFilter
	var ok bool
	if f.Date, ok = queryDate(w, r, "date", f.Date); !ok {
		return
	}
	if f.From, ok = queryDate(w, r, "from", f.From); !ok {
		return
	}
	if f.To, ok = queryDate(w, r, "to", f.To); !ok {
		return
	}
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, valid := model.ParseStatus(raw)
		if !valid {
			httpx.WriteFieldError(w, http.StatusBadRequest, "status", "must be pending, confirmed or cancelled")
			return
		}
		f.Status = st
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteFieldError(w, http.StatusBadRequest, "limit", "must be a positive integer")
			return
		}
		f.Limit = n
	}

	list, err := h.bookings.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingResponse(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	b, err := h.bookings.Create(r.Context(), booking.CreateInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Date:    req.Date,
		Time:    req.Time,
		Service: req.Service,
		Notes:   req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.logger.Info("booking created", "booking_id", b.ID, "request_id", httpx.RequestIDFromContext(r.Context()))
	httpx.WriteJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req patchBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	b, err := h.bookings.Update(r.Context(), r.PathValue("id"), booking.Patch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Date:    req.Date,
		Time:    req.Time,
		Service: req.Service,
		Notes:   req.Notes,
		Status:  req.Status,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	b, err := h.bookings.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"deleted": toBookingResponse(b)})
}
