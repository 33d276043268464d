package outbox

import (
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// Topic names equal event types: one event per topic.
const (
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"

	aggregateBooking = "booking"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// BookingPayload is the wire form of booking events. Guest-facing fields carry the
// values the guest submitted so messages never re-derive them.
type BookingPayload struct {
	BookingID         string `json:"booking_id"`
	MeetingTypeID     string `json:"meeting_type_id"`
	MeetingTypeName   string `json:"meeting_type_name"`
	OwnerID           string `json:"owner_id"`
	Status            string `json:"status"`
	CanonicalDate     string `json:"canonical_date"`
	CanonicalTime     string `json:"canonical_time"`
	CanonicalTimezone string `json:"canonical_timezone"`
	StartsAt          string `json:"starts_at"`
	DurationMinutes   int    `json:"duration_minutes"`
	OriginalDate      string `json:"original_date"`
	OriginalTime      string `json:"original_time"`
	RequesterTimezone string `json:"requester_timezone"`
	GuestName         string `json:"guest_name"`
	GuestEmail        string `json:"guest_email"`
	GuestPhone        string `json:"guest_phone,omitempty"`
	CancelledAt       string `json:"cancelled_at,omitempty"`
}

func NewBookingPayload(rule model.AvailabilityRule, rec model.BookingRecord) BookingPayload {
	p := BookingPayload{
		BookingID:         rec.ID,
		MeetingTypeID:     rule.ID,
		MeetingTypeName:   rule.Name,
		OwnerID:           rule.OwnerID,
		Status:            string(rec.Status),
		CanonicalDate:     rec.CanonicalDate,
		CanonicalTime:     rec.CanonicalTime,
		CanonicalTimezone: rec.CanonicalTimezone,
		StartsAt:          rec.StartsAt.UTC().Format(time.RFC3339),
		DurationMinutes:   rec.DurationMinutes,
		OriginalDate:      rec.OriginalDate,
		OriginalTime:      rec.OriginalTime,
		RequesterTimezone: rec.RequesterTimezone,
		GuestName:         rec.Guest.Name,
		GuestEmail:        rec.Guest.Email,
		GuestPhone:        rec.Guest.Phone,
	}
	if rec.CancelledAt != nil {
		p.CancelledAt = rec.CancelledAt.UTC().Format(time.RFC3339)
	}
	return p
}
