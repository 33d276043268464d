package admission

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
	"go.opentelemetry.io/otel/attribute"
)

const MaxAvailableDays = 60

// CreateRule assigns identity and defaults, validates, and stores a new rule.
func (s *Service) CreateRule(ctx context.Context, ownerID string, rule model.AvailabilityRule) (model.AvailabilityRule, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return model.AvailabilityRule{}, ErrForbidden
	}
	rule.ID = uuid.NewString()
	rule.OwnerID = ownerID
	rule.CreatedAt = s.now().UTC()
	rule.Name = strings.TrimSpace(rule.Name)
	rule.ApplyDefaults()
	if err := rule.Validate(); err != nil {
		return model.AvailabilityRule{}, err
	}
	err := s.call(ctx, "create rule", func(ctx context.Context) error {
		return s.store.CreateRule(ctx, rule)
	})
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	s.logger.Info("meeting type created", "meeting_type_id", rule.ID, "owner_id", ownerID)
	return rule, nil
}

func (s *Service) GetRule(ctx context.Context, id string) (model.AvailabilityRule, error) {
	return s.loadRule(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, ownerID string) ([]model.AvailabilityRule, error) {
	var rules []model.AvailabilityRule
	err := s.call(ctx, "list rules", func(ctx context.Context) error {
		var err error
		rules, err = s.store.ListRules(ctx, ownerID)
		return err
	})
	return rules, err
}

// SetRuleActive publishes or withdraws a meeting type. The rule definition itself is
// never edited.
func (s *Service) SetRuleActive(ctx context.Context, ownerID, ruleID string, active bool) (model.AvailabilityRule, error) {
	rule, err := s.ownedRule(ctx, ownerID, ruleID)
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	err = s.call(ctx, "set rule active", func(ctx context.Context) error {
		return s.store.SetRuleActive(ctx, ruleID, active)
	}, storage.ErrNotFound)
	if errors.Is(err, storage.ErrNotFound) {
		return model.AvailabilityRule{}, ErrRuleNotFound
	}
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	rule.IsActive = active
	return rule, nil
}

// ListBookings returns the bookings of an owner's rule; canonicalDate narrows to one day.
func (s *Service) ListBookings(ctx context.Context, ownerID, ruleID, canonicalDate string) ([]model.BookingRecord, error) {
	if canonicalDate != "" {
		if _, err := timeconv.ParseDate(canonicalDate); err != nil {
			return nil, err
		}
	}
	if _, err := s.ownedRule(ctx, ownerID, ruleID); err != nil {
		return nil, err
	}
	var recs []model.BookingRecord
	err := s.call(ctx, "list bookings", func(ctx context.Context) error {
		var err error
		recs, err = s.store.ListBookings(ctx, ruleID, canonicalDate)
		return err
	})
	return recs, err
}

type SlotQuery struct {
	RuleID   string
	Date     string
	Timezone string
	// BookableOnly drops slots that would fail the notice or horizon checks right now.
	BookableOnly bool
}

// ListSlots is advisory: a listed slot can still lose the race at admission time.
func (s *Service) ListSlots(ctx context.Context, q SlotQuery) (slots []model.Slot, err error) {
	ctx, span := s.startSpan(ctx, "admission.ListSlots",
		attribute.String("meeting_type.id", q.RuleID),
		attribute.String("slots.date", q.Date),
	)
	defer func() { endSpan(span, err) }()

	q.Timezone = strings.TrimSpace(q.Timezone)
	if _, err := timeconv.ParseDate(q.Date); err != nil {
		return nil, err
	}
	if _, err := timeconv.LoadZone(q.Timezone); err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, q.RuleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, ErrRuleInactive
	}
	dates, err := availability.CanonicalDates(rule, q.Date, q.Timezone)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookedSlots(ctx, rule.ID, dates)
	if err != nil {
		return nil, err
	}
	slots, err = availability.GenerateSlots(rule, q.Date, booked, q.Timezone)
	if err != nil {
		return nil, err
	}
	if q.BookableOnly {
		slots = s.bookable(rule, slots, booked)
	}
	return slots, nil
}

// AvailableDates lists the next days (starting today in timezone) that still have at
// least one bookable slot. Days whose canonical date is at capacity are left out.
func (s *Service) AvailableDates(ctx context.Context, ruleID, timezone string, days int) ([]string, error) {
	timezone = strings.TrimSpace(timezone)
	loc, err := timeconv.LoadZone(timezone)
	if err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, ErrRuleInactive
	}
	if days <= 0 {
		days = rule.AdvanceBookingDays + 1
	}
	if days > MaxAvailableDays {
		days = MaxAvailableDays
	}

	today := timeconv.DateOf(s.now().In(loc))
	var canonical []string
	seen := map[string]bool{}
	for i := 0; i < days; i++ {
		dates, err := availability.CanonicalDates(rule, today.AddDays(i).String(), timezone)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if !seen[d] {
				seen[d] = true
				canonical = append(canonical, d)
			}
		}
	}
	booked, err := s.bookedSlots(ctx, rule.ID, canonical)
	if err != nil {
		return nil, err
	}

	var out []string
	for i := 0; i < days; i++ {
		date := today.AddDays(i).String()
		slots, err := availability.GenerateSlots(rule, date, booked, timezone)
		if err != nil {
			return nil, err
		}
		if len(s.bookable(rule, slots, booked)) > 0 {
			out = append(out, date)
		}
	}
	return out, nil
}

func (s *Service) bookedSlots(ctx context.Context, ruleID string, dates []string) (model.SlotSet, error) {
	var booked model.SlotSet
	err := s.call(ctx, "booked slots", func(ctx context.Context) error {
		var err error
		booked, err = s.store.BookedSlots(ctx, ruleID, dates)
		return err
	})
	return booked, err
}

// bookable keeps the slots Admit would accept right now: inside the notice/horizon range
// and on a canonical day that is not yet at capacity. booked must cover the slots' dates.
func (s *Service) bookable(rule model.AvailabilityRule, slots []model.Slot, booked model.SlotSet) []model.Slot {
	perDay := make(map[string]int)
	for k := range booked {
		perDay[k.Date]++
	}
	now := s.now()
	out := slots[:0:0]
	for _, slot := range slots {
		if perDay[slot.CanonicalDate] >= rule.MaxBookingsPerDay {
			continue
		}
		if checkLeadTime(rule, slot.StartsAt, now) == nil {
			out = append(out, slot)
		}
	}
	return out
}
