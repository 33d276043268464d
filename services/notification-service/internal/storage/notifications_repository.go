package storage

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/md-rashed-zaman/meetslot/libs/db"
)

//go:embed schema/postgres.sql
var schema string

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt for one channel.
type Notification struct {
	EventID    string
	BookingID  string
	Kind       string
	Channel    string
	Recipient  string
	Status     string
	ProviderID string
	Error      string
	Payload    any
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, booking_id, kind, channel, recipient, status, provider_id, error, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.EventID, n.BookingID, n.Kind, n.Channel, n.Recipient, n.Status, n.ProviderID, n.Error, payload)
	return err
}
