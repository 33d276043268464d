package admission

import (
	"context"
	"errors"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// Cancel frees the booking's canonical slot. Cancelling an already cancelled booking
// returns it unchanged.
func (s *Service) Cancel(ctx context.Context, bookingID string) (res Result, err error) {
	ctx, span := s.startSpan(ctx, "admission.Cancel", attribute.String("booking.id", bookingID))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return Result{}, err
	}
	return s.cancel(ctx, rec)
}

func (s *Service) cancel(ctx context.Context, rec model.BookingRecord) (Result, error) {
	if rec.Status == model.StatusCancelled {
		return Result{Booking: rec}, nil
	}
	updated, err := s.transition(ctx, rec, model.StatusCancelled)
	if err != nil {
		if errors.Is(err, errAlreadyInTarget) {
			return Result{Booking: updated}, nil
		}
		return Result{}, err
	}

	s.logger.Info("booking cancelled", "booking_id", updated.ID, "meeting_type_id", updated.RuleID)
	rule, err := s.loadRule(ctx, updated.RuleID)
	if err != nil {
		s.logger.Warn("cancellation notification skipped", "booking_id", updated.ID, "err", err)
		return Result{Booking: updated, Warnings: []string{"booking cancelled notification could not be queued"}}, nil
	}
	warnings := s.notify(ctx, "booking cancelled", func(ctx context.Context) error {
		return s.notifier.BookingCancelled(ctx, rule, updated)
	})
	return Result{Booking: updated, Warnings: warnings}, nil
}

func (s *Service) Complete(ctx context.Context, ownerID, bookingID string) (Result, error) {
	return s.SetStatus(ctx, ownerID, bookingID, model.StatusCompleted)
}

func (s *Service) MarkNoShow(ctx context.Context, ownerID, bookingID string) (Result, error) {
	return s.SetStatus(ctx, ownerID, bookingID, model.StatusNoShow)
}

// SetStatus is the owner-driven transition out of confirmed. Repeating the same
// transition is a no-op.
func (s *Service) SetStatus(ctx context.Context, ownerID, bookingID string, to model.BookingStatus) (res Result, err error) {
	ctx, span := s.startSpan(ctx, "admission.SetStatus",
		attribute.String("booking.id", bookingID),
		attribute.String("booking.status", string(to)),
	)
	defer func() { endSpan(span, err) }()

	if !to.Terminal() {
		return Result{}, ErrInvalidTransition
	}
	rec, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.ownedRule(ctx, ownerID, rec.RuleID); err != nil {
		return Result{}, err
	}
	if to == model.StatusCancelled {
		return s.cancel(ctx, rec)
	}
	if rec.Status == to {
		return Result{Booking: rec}, nil
	}
	updated, err := s.transition(ctx, rec, to)
	if errors.Is(err, errAlreadyInTarget) {
		return Result{Booking: updated}, nil
	}
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("booking status changed", "booking_id", updated.ID, "status", string(to))
	return Result{Booking: updated}, nil
}

var errAlreadyInTarget = errors.New("booking already in target status")

// transition performs the conditional update. When a concurrent writer moved the booking
// first, the fresh record decides between a no-op and ErrInvalidTransition.
func (s *Service) transition(ctx context.Context, rec model.BookingRecord, to model.BookingStatus) (model.BookingRecord, error) {
	if !model.CanTransition(rec.Status, to) {
		return model.BookingRecord{}, ErrInvalidTransition
	}
	var updated model.BookingRecord
	err := s.call(ctx, "update status", func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateStatus(ctx, rec.ID, rec.Status, to, s.now().UTC())
		return err
	}, storage.ErrNotFound, storage.ErrStatusConflict)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return model.BookingRecord{}, ErrBookingNotFound
	case errors.Is(err, storage.ErrStatusConflict):
		current, loadErr := s.loadBooking(ctx, rec.ID)
		if loadErr != nil {
			return model.BookingRecord{}, loadErr
		}
		if current.Status == to {
			return current, errAlreadyInTarget
		}
		return model.BookingRecord{}, ErrInvalidTransition
	case err != nil:
		return model.BookingRecord{}, err
	}
	return updated, nil
}
