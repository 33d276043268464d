package handlers

import (
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/admission"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{admission.ErrStoreUnavailable, http.StatusServiceUnavailable},
	{admission.ErrInvalidTimezone, http.StatusBadRequest},
	{admission.ErrInvalidTimeOfDay, http.StatusBadRequest},
	{admission.ErrInvalidDate, http.StatusBadRequest},
	{admission.ErrInvalidRule, http.StatusBadRequest},
	{admission.ErrInvalidGuest, http.StatusBadRequest},
	{admission.ErrForbidden, http.StatusForbidden},
	{admission.ErrRuleNotFound, http.StatusNotFound},
	{admission.ErrBookingNotFound, http.StatusNotFound},
	{admission.ErrSlotAlreadyTaken, http.StatusConflict},
	{admission.ErrInvalidTransition, http.StatusConflict},
	{admission.ErrRuleInactive, http.StatusUnprocessableEntity},
	{admission.ErrPastOrTooSoon, http.StatusUnprocessableEntity},
	{admission.ErrBeyondHorizon, http.StatusUnprocessableEntity},
	{admission.ErrDayUnavailable, http.StatusUnprocessableEntity},
	{admission.ErrSlotNotOffered, http.StatusUnprocessableEntity},
	{admission.ErrDailyCapacityExceeded, http.StatusUnprocessableEntity},
}

func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, status, admission.Kind(err), "storage is temporarily unavailable, retry shortly")
	case status >= 500:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		httpx.WriteError(w, status, "Internal", "internal error")
	default:
		httpx.WriteError(w, status, admission.Kind(err), err.Error())
	}
}
