package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
)

var ErrInvalidRule = errors.New("invalid availability rule")

const (
	DefaultMaxBookingsPerDay  = 10
	DefaultAdvanceBookingDays = 30
	DefaultMinimumNoticeHours = 24
	DefaultCanonicalTimezone  = "UTC"

	MinSlotDurationMinutes = 5
	MaxSlotDurationMinutes = 1440
	MaxBufferMinutes       = 60
)

// Window is a recurring time-of-day range. Timezone is the zone the clock readings are
// expressed in; empty means the rule's canonical timezone.
type Window struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone,omitempty"`
}

// AvailabilityRule describes when a meeting type can be booked. Rules are not mutated
// after creation.
type AvailabilityRule struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"owner_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	WeekdayMask         []int     `json:"weekday_mask"`
	Windows             []Window  `json:"windows"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	BufferMinutes       int       `json:"buffer_minutes"`
	MaxBookingsPerDay   int       `json:"max_bookings_per_day"`
	AdvanceBookingDays  int       `json:"advance_booking_days"`
	MinimumNoticeHours  int       `json:"minimum_notice_hours"`
	CanonicalTimezone   string    `json:"canonical_timezone"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// ApplyDefaults fills unset limits. Zero minimum notice is a legitimate setting, so
// callers that want the default must pass a negative value.
func (r *AvailabilityRule) ApplyDefaults() {
	if r.MaxBookingsPerDay == 0 {
		r.MaxBookingsPerDay = DefaultMaxBookingsPerDay
	}
	if r.AdvanceBookingDays == 0 {
		r.AdvanceBookingDays = DefaultAdvanceBookingDays
	}
	if r.MinimumNoticeHours < 0 {
		r.MinimumNoticeHours = DefaultMinimumNoticeHours
	}
	r.CanonicalTimezone = strings.TrimSpace(r.CanonicalTimezone)
	if r.CanonicalTimezone == "" {
		r.CanonicalTimezone = DefaultCanonicalTimezone
	}
	for i := range r.Windows {
		if strings.TrimSpace(r.Windows[i].Timezone) == "" {
			r.Windows[i].Timezone = r.CanonicalTimezone
		}
	}
}

func (r AvailabilityRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if len(r.WeekdayMask) == 0 {
		return fmt.Errorf("%w: at least one weekday is required", ErrInvalidRule)
	}
	for _, d := range r.WeekdayMask {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range 0..6", ErrInvalidRule, d)
		}
	}
	if r.SlotDurationMinutes < MinSlotDurationMinutes || r.SlotDurationMinutes > MaxSlotDurationMinutes {
		return fmt.Errorf("%w: slot duration must be %d..%d minutes", ErrInvalidRule, MinSlotDurationMinutes, MaxSlotDurationMinutes)
	}
	if r.BufferMinutes < 0 || r.BufferMinutes > MaxBufferMinutes {
		return fmt.Errorf("%w: buffer must be 0..%d minutes", ErrInvalidRule, MaxBufferMinutes)
	}
	if r.MaxBookingsPerDay < 1 {
		return fmt.Errorf("%w: max bookings per day must be at least 1", ErrInvalidRule)
	}
	if r.AdvanceBookingDays < 1 {
		return fmt.Errorf("%w: advance booking days must be at least 1", ErrInvalidRule)
	}
	if r.MinimumNoticeHours < 0 {
		return fmt.Errorf("%w: minimum notice cannot be negative", ErrInvalidRule)
	}
	if _, err := timeconv.LoadZone(r.CanonicalTimezone); err != nil {
		return fmt.Errorf("%w: canonical timezone: %w", ErrInvalidRule, err)
	}
	if len(r.Windows) == 0 {
		return fmt.Errorf("%w: at least one window is required", ErrInvalidRule)
	}
	for i, w := range r.Windows {
		if _, _, err := w.Bounds(); err != nil {
			return fmt.Errorf("%w: window %d: %w", ErrInvalidRule, i, err)
		}
		if _, err := timeconv.LoadZone(w.Zone(r.CanonicalTimezone)); err != nil {
			return fmt.Errorf("%w: window %d: %w", ErrInvalidRule, i, err)
		}
	}
	return nil
}

// Bounds parses the window's clock readings and requires end strictly after start.
func (w Window) Bounds() (timeconv.TimeOfDay, timeconv.TimeOfDay, error) {
	start, err := timeconv.ParseTimeOfDay(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := timeconv.ParseTimeOfDay(w.End)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return start, end, nil
}

func (w Window) Zone(fallback string) string {
	if tz := strings.TrimSpace(w.Timezone); tz != "" {
		return tz
	}
	return fallback
}

func (r AvailabilityRule) AllowsWeekday(d time.Weekday) bool {
	for _, v := range r.WeekdayMask {
		if v == int(d) {
			return true
		}
	}
	return false
}

func (r AvailabilityRule) SlotDuration() time.Duration {
	return time.Duration(r.SlotDurationMinutes) * time.Minute
}

// Step is the distance between consecutive slot starts within a window.
func (r AvailabilityRule) Step() time.Duration {
	return time.Duration(r.SlotDurationMinutes+r.BufferMinutes) * time.Minute
}
