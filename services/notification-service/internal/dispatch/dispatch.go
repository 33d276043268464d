package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/meetslot/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const (
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
)

// Topics lists the topics the dispatcher understands.
var Topics = []string{EventBookingConfirmed, EventBookingCancelled}

var errMalformed = errors.New("malformed booking event")

// bookingEvent mirrors the booking-service wire payload; unknown fields are ignored.
type bookingEvent struct {
	BookingID         string `json:"booking_id"`
	MeetingTypeName   string `json:"meeting_type_name"`
	DurationMinutes   int    `json:"duration_minutes"`
	OriginalDate      string `json:"original_date"`
	OriginalTime      string `json:"original_time"`
	RequesterTimezone string `json:"requester_timezone"`
	GuestName         string `json:"guest_name"`
	GuestEmail        string `json:"guest_email"`
	GuestPhone        string `json:"guest_phone,omitempty"`
}

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Dispatcher struct {
	logger   *slog.Logger
	mail     email.Sender
	sms      sms.Sender
	recorder Recorder
	// mailProviderID is stored with each email attempt.
	mailProviderID string
}

// New builds a dispatcher. smsSender may be nil to disable texts.
func New(logger *slog.Logger, mail email.Sender, smsSender sms.Sender, recorder Recorder) *Dispatcher {
	return &Dispatcher{logger: logger, mail: mail, sms: smsSender, recorder: recorder, mailProviderID: "smtp"}
}

// Handle sends the guest messages for one booking event. Delivery failures are recorded
// and swallowed; only a failure to record is returned, so the consumer retries it.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	eventType := meta.EventType
	if eventType == "" {
		eventType = msg.Topic
	}

	evt, err := decode(msg.Value)
	if err != nil {
		d.logger.Error("dropping booking event", "err", err, "event_id", meta.EventID, "topic", msg.Topic)
		return nil
	}

	booking := email.Booking{
		BookingID:       evt.BookingID,
		MeetingTypeName: evt.MeetingTypeName,
		GuestName:       evt.GuestName,
		Date:            evt.OriginalDate,
		Time:            evt.OriginalTime,
		Timezone:        evt.RequesterTimezone,
		DurationMinutes: evt.DurationMinutes,
	}
	var (
		message email.Message
		label   string
	)
	switch eventType {
	case EventBookingConfirmed:
		message, err = email.RenderConfirmed(booking)
		label = "Confirmed"
	case EventBookingCancelled:
		message, err = email.RenderCancelled(booking)
		label = "Cancelled"
	default:
		d.logger.Warn("ignoring unknown event type", "event_type", eventType, "event_id", meta.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", eventType, err)
	}

	base := storage.Notification{
		EventID:   meta.EventID,
		BookingID: evt.BookingID,
		Kind:      eventType,
		Payload:   evt,
	}

	mailed := base
	mailed.Channel = "email"
	mailed.Recipient = evt.GuestEmail
	d.deliver(&mailed, d.mailProviderID, func() error { return d.mail.Send(evt.GuestEmail, message) })
	if err := d.recorder.Insert(ctx, mailed); err != nil {
		return fmt.Errorf("record email notification: %w", err)
	}

	if d.sms != nil && evt.GuestPhone != "" {
		text := sms.Text(label, evt.MeetingTypeName, evt.OriginalDate, evt.OriginalTime, evt.RequesterTimezone)
		texted := base
		texted.Channel = "sms"
		texted.Recipient = evt.GuestPhone
		d.deliver(&texted, d.sms.ProviderID(), func() error { return d.sms.Send(ctx, evt.GuestPhone, text, meta.EventID) })
		if err := d.recorder.Insert(ctx, texted); err != nil {
			return fmt.Errorf("record sms notification: %w", err)
		}
	}

	d.logger.Info("booking notification processed",
		"booking_id", evt.BookingID,
		"event_type", eventType,
		"email_status", mailed.Status,
	)
	return nil
}

func (d *Dispatcher) deliver(n *storage.Notification, providerID string, send func() error) {
	if err := send(); err != nil {
		d.logger.Error("notification send failed", "channel", n.Channel, "booking_id", n.BookingID, "err", err)
		n.Status = storage.StatusFailed
		n.Error = err.Error()
		return
	}
	n.Status = storage.StatusSent
	n.ProviderID = providerID
}

func decode(raw []byte) (bookingEvent, error) {
	var evt bookingEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return bookingEvent{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if strings.TrimSpace(evt.BookingID) == "" || strings.TrimSpace(evt.GuestEmail) == "" {
		return bookingEvent{}, fmt.Errorf("%w: booking_id and guest_email are required", errMalformed)
	}
	if evt.OriginalDate == "" || evt.OriginalTime == "" || evt.RequesterTimezone == "" {
		return bookingEvent{}, fmt.Errorf("%w: original date, time and timezone are required", errMalformed)
	}
	return evt, nil
}
