package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
	"go.opentelemetry.io/otel/attribute"
)

type AdmitRequest struct {
	RuleID            string
	Date              string
	Time              string
	RequesterTimezone string
	Guest             model.Guest
}

// Admit validates the request against the rule and atomically reserves the canonical
// slot. On any error nothing is stored.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (res Result, err error) {
	ctx, span := s.startSpan(ctx, "admission.Admit",
		attribute.String("meeting_type.id", req.RuleID),
		attribute.String("booking.date", req.Date),
		attribute.String("booking.timezone", req.RequesterTimezone),
	)
	defer func() { endSpan(span, err) }()

	res, err = s.admit(ctx, req)
	if err != nil && !errors.Is(err, ErrStoreUnavailable) {
		s.logger.Info("booking rejected", "meeting_type_id", req.RuleID, "date", req.Date, "time", req.Time, "reason", Kind(err))
	}
	return res, err
}

func (s *Service) admit(ctx context.Context, req AdmitRequest) (Result, error) {
	day, err := timeconv.ParseDate(req.Date)
	if err != nil {
		return Result{}, err
	}
	clock, err := timeconv.ParseTimeOfDay(req.Time)
	if err != nil {
		return Result{}, err
	}
	tz := strings.TrimSpace(req.RequesterTimezone)
	reqLoc, err := timeconv.LoadZone(tz)
	if err != nil {
		return Result{}, err
	}
	guest := req.Guest.Normalize()
	if !guest.Valid() {
		return Result{}, ErrInvalidGuest
	}

	rule, err := s.loadRule(ctx, req.RuleID)
	if err != nil {
		return Result{}, err
	}
	if !rule.IsActive {
		return Result{}, ErrRuleInactive
	}

	instant := day.At(clock, reqLoc)
	if timeconv.ClockOf(instant.In(reqLoc)) != clock {
		return Result{}, fmt.Errorf("%w: %s does not exist on %s in %s", ErrInvalidTimeOfDay, clock, day, tz)
	}

	now := s.now()
	if err := checkLeadTime(rule, instant, now); err != nil {
		return Result{}, err
	}

	offered, err := availability.GenerateSlots(rule, day.String(), nil, tz)
	if err != nil {
		return Result{}, err
	}
	if len(offered) == 0 {
		return Result{}, ErrDayUnavailable
	}
	slot, ok := availability.Find(offered, instant)
	if !ok {
		return Result{}, ErrSlotNotOffered
	}

	var active int
	err = s.call(ctx, "count bookings", func(ctx context.Context) error {
		var err error
		active, err = s.store.CountActive(ctx, rule.ID, slot.CanonicalDate)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if active >= rule.MaxBookingsPerDay {
		return Result{}, ErrDailyCapacityExceeded
	}

	at := now.UTC()
	rec := model.BookingRecord{
		ID:                uuid.NewString(),
		RuleID:            rule.ID,
		CanonicalDate:     slot.CanonicalDate,
		CanonicalTime:     slot.CanonicalTime,
		CanonicalTimezone: rule.CanonicalTimezone,
		StartsAt:          instant.UTC(),
		DurationMinutes:   rule.SlotDurationMinutes,
		OriginalDate:      day.String(),
		OriginalTime:      clock.String(),
		RequesterTimezone: tz,
		Guest:             guest,
		Status:            model.StatusConfirmed,
		CreatedAt:         at,
		UpdatedAt:         at,
	}

	var outcome storage.ReserveOutcome
	err = s.call(ctx, "reserve", func(ctx context.Context) error {
		var err error
		outcome, err = s.store.Reserve(ctx, rec, rule.MaxBookingsPerDay)
		return err
	}, storage.ErrNotFound)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Result{}, ErrRuleNotFound
	case err != nil:
		return Result{}, err
	}
	switch outcome {
	case storage.Admitted:
	case storage.AlreadyTaken:
		return Result{}, ErrSlotAlreadyTaken
	case storage.CapacityReached:
		return Result{}, ErrDailyCapacityExceeded
	default:
		return Result{}, fmt.Errorf("reserve: %w: unexpected outcome %s", ErrStoreUnavailable, outcome)
	}

	s.logger.Info("booking confirmed",
		"booking_id", rec.ID,
		"meeting_type_id", rule.ID,
		"canonical_date", rec.CanonicalDate,
		"canonical_time", rec.CanonicalTime,
	)
	warnings := s.notify(ctx, "booking confirmed", func(ctx context.Context) error {
		return s.notifier.BookingConfirmed(ctx, rule, rec)
	})
	return Result{Booking: rec, Warnings: warnings}, nil
}

// checkLeadTime applies the notice period (exact boundary accepted) and the horizon,
// which is counted in calendar days of the canonical timezone.
func checkLeadTime(rule model.AvailabilityRule, instant, now time.Time) error {
	notice := time.Duration(rule.MinimumNoticeHours) * time.Hour
	if instant.Sub(now) < notice || instant.Before(now) {
		return ErrPastOrTooSoon
	}
	canLoc, err := timeconv.LoadZone(rule.CanonicalTimezone)
	if err != nil {
		return err
	}
	today := timeconv.DateOf(now.In(canLoc))
	if timeconv.DateOf(instant.In(canLoc)).DaysSince(today) > rule.AdvanceBookingDays {
		return ErrBeyondHorizon
	}
	return nil
}
