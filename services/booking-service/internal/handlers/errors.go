package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

// writeServiceError maps domain errors onto status codes. Anything unrecognised is logged
// and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *availability.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteFieldError(w, http.StatusBadRequest, verr.Field, verr.Message)
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrSlotTaken):
		httpx.WriteError(w, http.StatusConflict, booking.ErrSlotTaken.Error())
	case errors.Is(err, storage.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict")
	case errors.Is(err, booking.ErrSlotUnavailable):
		httpx.WriteError(w, http.StatusUnprocessableEntity, booking.ErrSlotUnavailable.Error())
	default:
		logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeBadBody(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, err.Error())
}
