package admission

import (
	"errors"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
)

// Malformed input.
var (
	ErrInvalidTimezone  = timeconv.ErrInvalidTimezone
	ErrInvalidTimeOfDay = timeconv.ErrInvalidTimeOfDay
	ErrInvalidDate      = timeconv.ErrInvalidDate
	ErrInvalidRule      = model.ErrInvalidRule
	ErrInvalidGuest     = errors.New("invalid guest identity")
)

// Lookups and ownership.
var (
	ErrRuleNotFound    = errors.New("meeting type not found")
	ErrRuleInactive    = errors.New("meeting type is not accepting bookings")
	ErrBookingNotFound = errors.New("booking not found")
	ErrForbidden       = errors.New("meeting type belongs to another owner")
)

// Business rejections. Each is safe to retry with different input.
var (
	ErrPastOrTooSoon         = errors.New("requested time is in the past or inside the notice period")
	ErrBeyondHorizon         = errors.New("requested date is beyond the booking horizon")
	ErrDayUnavailable        = errors.New("requested day has no availability")
	ErrSlotNotOffered        = errors.New("requested time is not an offered slot")
	ErrDailyCapacityExceeded = errors.New("daily booking capacity reached")
	ErrSlotAlreadyTaken      = errors.New("slot already taken")
	ErrInvalidTransition     = errors.New("invalid booking status transition")
)

// ErrStoreUnavailable wraps persistence failures and deadlines. Callers may retry with backoff.
var ErrStoreUnavailable = errors.New("store unavailable")

var kinds = []struct {
	err  error
	name string
}{
	{ErrStoreUnavailable, "StoreUnavailable"},
	{ErrInvalidTimezone, "InvalidTimezone"},
	{ErrInvalidTimeOfDay, "InvalidTimeOfDay"},
	{ErrInvalidDate, "InvalidDate"},
	{ErrInvalidRule, "InvalidRule"},
	{ErrInvalidGuest, "InvalidGuest"},
	{ErrRuleNotFound, "RuleNotFound"},
	{ErrRuleInactive, "RuleInactive"},
	{ErrBookingNotFound, "BookingNotFound"},
	{ErrForbidden, "Forbidden"},
	{ErrPastOrTooSoon, "PastOrTooSoon"},
	{ErrBeyondHorizon, "BeyondHorizon"},
	{ErrDayUnavailable, "DayUnavailable"},
	{ErrSlotNotOffered, "SlotNotOffered"},
	{ErrDailyCapacityExceeded, "DailyCapacityExceeded"},
	{ErrSlotAlreadyTaken, "SlotAlreadyTaken"},
	{ErrInvalidTransition, "InvalidTransition"},
}

// Kind names the taxonomy entry err belongs to, or "Internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
