// Package admission decides whether a booking request becomes a BookingRecord.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultStoreTimeout = 3 * time.Second

// Store is the persistence the service needs. storage.PostgresStore and
// storage.SQLiteStore both satisfy it.
type Store interface {
	CreateRule(ctx context.Context, rule model.AvailabilityRule) error
	GetRule(ctx context.Context, id string) (model.AvailabilityRule, error)
	ListRules(ctx context.Context, ownerID string) ([]model.AvailabilityRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
	BookedSlots(ctx context.Context, ruleID string, dates []string) (model.SlotSet, error)
	CountActive(ctx context.Context, ruleID, canonicalDate string) (int, error)
	Reserve(ctx context.Context, rec model.BookingRecord, maxPerDay int) (storage.ReserveOutcome, error)
	GetBooking(ctx context.Context, id string) (model.BookingRecord, error)
	ListBookings(ctx context.Context, ruleID, canonicalDate string) ([]model.BookingRecord, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (model.BookingRecord, error)
}

// Notifier is told about committed bookings. It runs after the record is durable and
// its failure never changes the outcome.
type Notifier interface {
	BookingConfirmed(ctx context.Context, rule model.AvailabilityRule, rec model.BookingRecord) error
	BookingCancelled(ctx context.Context, rule model.AvailabilityRule, rec model.BookingRecord) error
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

type Service struct {
	store        Store
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
	storeTimeout time.Duration
	tracer       trace.Tracer
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       logger,
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
		tracer:       otel.Tracer("meetslot/booking-service/admission"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result carries a booking plus soft warnings (e.g. a notification that could not be queued).
type Result struct {
	Booking  model.BookingRecord `json:"booking"`
	Warnings []string            `json:"warnings,omitempty"`
}

// call runs fn with the store deadline and folds any failure into ErrStoreUnavailable.
// Sentinels listed in pass are returned as is.
func (s *Service) call(ctx context.Context, op string, fn func(context.Context) error, pass ...error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	err := fn(ctx)
	if err == nil {
		return nil
	}
	for _, p := range pass {
		if errors.Is(err, p) {
			return err
		}
	}
	s.logger.Error("store call failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func (s *Service) loadRule(ctx context.Context, id string) (model.AvailabilityRule, error) {
	var rule model.AvailabilityRule
	err := s.call(ctx, "get rule", func(ctx context.Context) error {
		var err error
		rule, err = s.store.GetRule(ctx, id)
		return err
	}, storage.ErrNotFound)
	if errors.Is(err, storage.ErrNotFound) {
		return model.AvailabilityRule{}, ErrRuleNotFound
	}
	return rule, err
}

func (s *Service) loadBooking(ctx context.Context, id string) (model.BookingRecord, error) {
	var rec model.BookingRecord
	err := s.call(ctx, "get booking", func(ctx context.Context) error {
		var err error
		rec, err = s.store.GetBooking(ctx, id)
		return err
	}, storage.ErrNotFound)
	if errors.Is(err, storage.ErrNotFound) {
		return model.BookingRecord{}, ErrBookingNotFound
	}
	return rec, err
}

func (s *Service) ownedRule(ctx context.Context, ownerID, ruleID string) (model.AvailabilityRule, error) {
	rule, err := s.loadRule(ctx, ruleID)
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	if rule.OwnerID != ownerID {
		return model.AvailabilityRule{}, ErrForbidden
	}
	return rule, nil
}

// notify runs after commit. The caller's cancellation is detached so a client that hangs
// up right after booking still gets its confirmation queued.
func (s *Service) notify(ctx context.Context, event string, fn func(context.Context) error) []string {
	if s.notifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Warn("notification failed", "event", event, "err", err)
		return []string{event + " notification could not be queued"}
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
	}
	span.End()
}
