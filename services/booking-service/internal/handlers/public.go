package handlers

import (
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/admission"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
)

// publicMeetingType is what a guest sees; owner identity stays private.
type publicMeetingType struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	SlotDurationMinutes int            `json:"slot_duration_minutes"`
	WeekdayMask         []int          `json:"weekday_mask"`
	Windows             []model.Window `json:"windows"`
	AdvanceBookingDays  int            `json:"advance_booking_days"`
	MinimumNoticeHours  int            `json:"minimum_notice_hours"`
	CanonicalTimezone   string         `json:"canonical_timezone"`
	IsActive            bool           `json:"is_active"`
}

func toPublic(rule model.AvailabilityRule) publicMeetingType {
	return publicMeetingType{
		ID:                  rule.ID,
		Name:                rule.Name,
		Description:         rule.Description,
		SlotDurationMinutes: rule.SlotDurationMinutes,
		WeekdayMask:         rule.WeekdayMask,
		Windows:             rule.Windows,
		AdvanceBookingDays:  rule.AdvanceBookingDays,
		MinimumNoticeHours:  rule.MinimumNoticeHours,
		CanonicalTimezone:   rule.CanonicalTimezone,
		IsActive:            rule.IsActive,
	}
}

func (h *Handler) GetMeetingType(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPublic(rule))
}

type slotsResponse struct {
	MeetingTypeID string       `json:"meeting_type_id"`
	Date          string       `json:"date"`
	Timezone      string       `json:"timezone"`
	Slots         []model.Slot `json:"slots"`
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	if !requireQuery(w, r, "meeting_type_id", "date", "timezone") {
		return
	}
	q := admission.SlotQuery{
		RuleID:   queryValue(r, "meeting_type_id"),
		Date:     queryValue(r, "date"),
		Timezone: queryValue(r, "timezone"),
	}
	if raw := queryValue(r, "bookable_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteErrorDetails(w, http.StatusBadRequest, "InvalidRequest", "invalid query parameter",
				map[string]string{"bookable_only": "must be true or false"})
			return
		}
		q.BookableOnly = v
	}

	slots, err := h.svc.ListSlots(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		MeetingTypeID: q.RuleID,
		Date:          q.Date,
		Timezone:      q.Timezone,
		Slots:         slots,
	})
}

func (h *Handler) AvailableDates(w http.ResponseWriter, r *http.Request) {
	if !requireQuery(w, r, "meeting_type_id", "timezone") {
		return
	}
	days := 0
	if raw := queryValue(r, "days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.WriteErrorDetails(w, http.StatusBadRequest, "InvalidRequest", "invalid query parameter",
				map[string]string{"days": "must be a positive integer"})
			return
		}
		days = n
	}
	dates, err := h.svc.AvailableDates(r.Context(), queryValue(r, "meeting_type_id"), queryValue(r, "timezone"), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

type guestRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

type createBookingRequest struct {
	MeetingTypeID string       `json:"meeting_type_id" validate:"required"`
	Date          string       `json:"date" validate:"required"`
	Time          string       `json:"time" validate:"required"`
	Timezone      string       `json:"timezone" validate:"required"`
	Guest         guestRequest `json:"guest"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Admit(r.Context(), admission.AdmitRequest{
		RuleID:            req.MeetingTypeID,
		Date:              req.Date,
		Time:              req.Time,
		RequesterTimezone: req.Timezone,
		Guest: model.Guest{
			Name:  req.Guest.Name,
			Email: req.Guest.Email,
			Phone: req.Guest.Phone,
			Notes: req.Guest.Notes,
		},
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Timezones(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"timezones": timeconv.CommonZones(h.now())})
}
