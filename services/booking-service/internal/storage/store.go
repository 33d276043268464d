// Package storage persists availability rules and bookings.
//
// Two implementations share the same contract: PostgresStore for production and
// SQLiteStore for local development and tests. Both guard the canonical slot with a
// partial unique index over non-cancelled bookings, so a reservation is a single
// conditional insert rather than a read followed by a write.
package storage

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrStatusConflict = errors.New("booking status changed concurrently")
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ReserveOutcome is the result of an atomic reservation attempt.
type ReserveOutcome int

const (
	Admitted ReserveOutcome = iota + 1
	AlreadyTaken
	CapacityReached
)

func (o ReserveOutcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case AlreadyTaken:
		return "already_taken"
	case CapacityReached:
		return "capacity_reached"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const listLimit = 500

func encodeRuleJSON(rule model.AvailabilityRule) (mask, windows []byte, err error) {
	if mask, err = json.Marshal(rule.WeekdayMask); err != nil {
		return nil, nil, err
	}
	if windows, err = json.Marshal(rule.Windows); err != nil {
		return nil, nil, err
	}
	return mask, windows, nil
}

func decodeRuleJSON(rule *model.AvailabilityRule, mask, windows []byte) error {
	if err := json.Unmarshal(mask, &rule.WeekdayMask); err != nil {
		return fmt.Errorf("decode weekday mask: %w", err)
	}
	if err := json.Unmarshal(windows, &rule.Windows); err != nil {
		return fmt.Errorf("decode windows: %w", err)
	}
	return nil
}
