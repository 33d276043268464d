package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/meetslot/libs/auth"
	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

type windowRequest struct {
	Start    string `json:"start" validate:"required"`
	End      string `json:"end" validate:"required"`
	Timezone string `json:"timezone"`
}

type createMeetingTypeRequest struct {
	Name                string          `json:"name" validate:"required,max=200"`
	Description         string          `json:"description" validate:"omitempty,max=2000"`
	WeekdayMask         []int           `json:"weekday_mask" validate:"required,min=1,dive,min=0,max=6"`
	Windows             []windowRequest `json:"windows" validate:"required,min=1,dive"`
	SlotDurationMinutes int             `json:"slot_duration_minutes" validate:"required"`
	BufferMinutes       int             `json:"buffer_minutes"`
	MaxBookingsPerDay   int             `json:"max_bookings_per_day"`
	AdvanceBookingDays  int             `json:"advance_booking_days"`
	// Nil means the default notice; zero is a valid explicit setting.
	MinimumNoticeHours *int   `json:"minimum_notice_hours"`
	CanonicalTimezone  string `json:"canonical_timezone"`
	IsActive           *bool  `json:"is_active"`
}

func (req createMeetingTypeRequest) rule() model.AvailabilityRule {
	rule := model.AvailabilityRule{
		Name:                req.Name,
		Description:         req.Description,
		WeekdayMask:         req.WeekdayMask,
		SlotDurationMinutes: req.SlotDurationMinutes,
		BufferMinutes:       req.BufferMinutes,
		MaxBookingsPerDay:   req.MaxBookingsPerDay,
		AdvanceBookingDays:  req.AdvanceBookingDays,
		MinimumNoticeHours:  -1,
		CanonicalTimezone:   req.CanonicalTimezone,
		IsActive:            true,
	}
	if req.MinimumNoticeHours != nil {
		rule.MinimumNoticeHours = *req.MinimumNoticeHours
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	for _, win := range req.Windows {
		rule.Windows = append(rule.Windows, model.Window{Start: win.Start, End: win.End, Timezone: win.Timezone})
	}
	return rule
}

func (h *Handler) CreateMeetingType(w http.ResponseWriter, r *http.Request) {
	var req createMeetingTypeRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.svc.CreateRule(r.Context(), auth.OwnerFromContext(r.Context()), req.rule())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rule)
}

func (h *Handler) ListMeetingTypes(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context(), auth.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if rules == nil {
		rules = []model.AvailabilityRule{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"meeting_types": rules})
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *Handler) SetMeetingTypeActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.svc.SetRuleActive(r.Context(), auth.OwnerFromContext(r.Context()), r.PathValue("id"), *req.IsActive)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListBookings(r.Context(), auth.OwnerFromContext(r.Context()), r.PathValue("id"), queryValue(r, "date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.BookingRecord{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed no-show cancelled"`
}

func (h *Handler) SetBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.SetStatus(r.Context(), auth.OwnerFromContext(r.Context()), r.PathValue("id"), model.BookingStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
