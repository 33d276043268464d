package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetslot/libs/config"
	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/libs/kafkax"
	"github.com/md-rashed-zaman/meetslot/libs/runtime"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/admission"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/storage"
)

type backend struct {
	driver   string
	store    admission.Store
	notifier admission.Notifier
	checks   []runtime.ReadyCheck
	close    func()
}

// openBackend selects the store. Postgres brings the outbox and its Kafka publisher;
// SQLite is the single-node mode and only logs notifications.
func openBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	switch driver := config.String("DATABASE_DRIVER", "postgres"); driver {
	case "postgres":
		return openPostgres(ctx, logger)
	case "sqlite":
		path := config.String("SQLITE_PATH", "meetslot.db")
		store, err := storage.OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		return &backend{
			driver:   driver,
			store:    store,
			notifier: outbox.NewLogNotifier(logger),
			checks:   []runtime.ReadyCheck{{Name: "db", Check: store.Ping}},
			close:    func() { _ = store.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite (got %q)", driver)
	}
}

func openPostgres(ctx context.Context, logger *slog.Logger) (*backend, error) {
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	store := storage.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		pool.Close()
		return nil, err
	}
	outboxRepo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: pollEvery,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	return &backend{
		driver:   "postgres",
		store:    store,
		notifier: outbox.NewNotifier(outboxRepo),
		checks:   checks,
		close:    pool.Close,
	}, nil
}
