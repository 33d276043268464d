package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/admission"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// BookingService is the engine behind the HTTP surface; *admission.Service implements it.
type BookingService interface {
	Admit(ctx context.Context, req admission.AdmitRequest) (admission.Result, error)
	Cancel(ctx context.Context, bookingID string) (admission.Result, error)
	SetStatus(ctx context.Context, ownerID, bookingID string, to model.BookingStatus) (admission.Result, error)
	CreateRule(ctx context.Context, ownerID string, rule model.AvailabilityRule) (model.AvailabilityRule, error)
	GetRule(ctx context.Context, id string) (model.AvailabilityRule, error)
	ListRules(ctx context.Context, ownerID string) ([]model.AvailabilityRule, error)
	SetRuleActive(ctx context.Context, ownerID, ruleID string, active bool) (model.AvailabilityRule, error)
	ListBookings(ctx context.Context, ownerID, ruleID, canonicalDate string) ([]model.BookingRecord, error)
	ListSlots(ctx context.Context, q admission.SlotQuery) ([]model.Slot, error)
	AvailableDates(ctx context.Context, ruleID, timezone string, days int) ([]string, error)
}

type Handler struct {
	svc    BookingService
	logger *slog.Logger
	now    func() time.Time
}

func New(svc BookingService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// Routes registers the API on mux. public wraps guest-facing routes (rate limiting),
// owner wraps routes that need an authenticated owner.
func (h *Handler) Routes(mux *http.ServeMux, public, owner httpx.Middleware) {
	if public == nil {
		public = passthrough
	}
	if owner == nil {
		owner = passthrough
	}
	pub := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, public(fn)) }
	own := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, owner(fn)) }

	pub("GET /api/v1/public/meeting-types/{id}", h.GetMeetingType)
	pub("GET /api/v1/public/slots", h.ListSlots)
	pub("GET /api/v1/public/available-dates", h.AvailableDates)
	pub("POST /api/v1/public/book", h.CreateBooking)
	pub("POST /api/v1/public/bookings/{id}/cancel", h.CancelBooking)
	pub("GET /api/v1/timezones", h.Timezones)

	own("POST /api/v1/meeting-types", h.CreateMeetingType)
	own("GET /api/v1/meeting-types", h.ListMeetingTypes)
	own("POST /api/v1/meeting-types/{id}/active", h.SetMeetingTypeActive)
	own("GET /api/v1/meeting-types/{id}/bookings", h.ListBookings)
	own("POST /api/v1/bookings/{id}/status", h.SetBookingStatus)
}

func passthrough(next http.Handler) http.Handler { return next }
