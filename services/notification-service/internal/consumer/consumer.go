package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Reader is the subset of *kafka.Reader the loop needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     Reader
	logger     *slog.Logger
	inbox      Inbox
	handler    Handler
	retryDelay time.Duration
	maxRetries int
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(logger, inbox, reader, handler)
}

func NewWithReader(logger *slog.Logger, inbox Inbox, reader Reader, handler Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      inbox,
		handler:    handler,
		retryDelay: time.Second,
		maxRetries: 3,
	}
}

// Run reads until ctx is done. Offsets are committed only after a message is handled
// or given up on, so a crash replays it and the inbox drops the duplicate.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			sleep(ctx, c.retryDelay)
			continue
		}

		if !c.process(ctx, msg) {
			// Only shutdown leaves a message uncommitted; the next group member replays it.
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process reports whether msg is finished with and its offset may be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	fresh, err := c.record(ctxSpan, meta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return true
	}

	for attempt := 1; ; attempt++ {
		err = c.handler(ctxSpan, msg)
		if err == nil {
			return true
		}
		c.logger.Warn("handler error", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if attempt >= c.maxRetries || ctx.Err() != nil {
			break
		}
		sleep(ctx, c.retryDelay*time.Duration(attempt))
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if ctx.Err() != nil {
		if relErr := c.inbox.Release(context.WithoutCancel(ctx), meta.EventID); relErr != nil {
			c.logger.Error("inbox release failed", "err", relErr, "event_id", meta.EventID)
		}
		return false
	}
	c.logger.Error("event dropped after retries", "event_id", meta.EventID, "event_type", meta.EventType, "err", err)
	return true
}

// record claims the event id, retrying store errors until ctx ends. Skipping ahead
// would let a later commit cover this offset.
func (c *Consumer) record(ctx context.Context, meta kafkax.EventMeta) (bool, error) {
	for attempt := 1; ; attempt++ {
		fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
		if err == nil {
			return fresh, nil
		}
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID, "attempt", attempt)
		if ctx.Err() != nil {
			return false, err
		}
		sleep(ctx, c.retryDelay*time.Duration(min(attempt, 5)))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
