package outbox

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// Notifier queues booking events in the outbox after the booking has committed.
type Notifier struct {
	repo *Repository
}

func NewNotifier(repo *Repository) *Notifier {
	return &Notifier{repo: repo}
}

func (n *Notifier) BookingConfirmed(ctx context.Context, rule model.AvailabilityRule, rec model.BookingRecord) error {
	return n.enqueue(ctx, EventBookingConfirmed, rule, rec)
}

func (n *Notifier) BookingCancelled(ctx context.Context, rule model.AvailabilityRule, rec model.BookingRecord) error {
	return n.enqueue(ctx, EventBookingCancelled, rule, rec)
}

func (n *Notifier) enqueue(ctx context.Context, eventType string, rule model.AvailabilityRule, rec model.BookingRecord) error {
	evt, err := NewBookingEvent(eventType, rule, rec)
	if err != nil {
		return err
	}
	return n.repo.Insert(ctx, nil, evt)
}

func NewBookingEvent(eventType string, rule model.AvailabilityRule, rec model.BookingRecord) (Event, error) {
	payload, err := json.Marshal(NewBookingPayload(rule, rec))
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateBooking,
		AggregateID:   rec.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// LogNotifier records events in the service log. It stands in for the outbox when the
// service runs on the embedded store.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) BookingConfirmed(ctx context.Context, rule model.AvailabilityRule, rec model.BookingRecord) error {
	return n.log(ctx, EventBookingConfirmed, rule, rec)
}

func (n *LogNotifier) BookingCancelled(ctx context.Context, rule model.AvailabilityRule, rec model.BookingRecord) error {
	return n.log(ctx, EventBookingCancelled, rule, rec)
}

func (n *LogNotifier) log(ctx context.Context, eventType string, rule model.AvailabilityRule, rec model.BookingRecord) error {
	evt, err := NewBookingEvent(eventType, rule, rec)
	if err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "booking event",
		"event_id", evt.EventID,
		"event_type", evt.EventType,
		"booking_id", evt.AggregateID,
		"payload", json.RawMessage(evt.Payload),
	)
	return nil
}
