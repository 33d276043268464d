package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/postgres.sql")
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, string(ddl))
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateRule(ctx context.Context, rule model.AvailabilityRule) error {
	mask, windows, err := encodeRuleJSON(rule)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO availability_rules
			(id, owner_id, name, description, weekday_mask, windows, slot_duration_minutes, buffer_minutes,
			 max_bookings_per_day, advance_booking_days, minimum_notice_hours, canonical_timezone, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rule.ID, rule.OwnerID, rule.Name, rule.Description, mask, windows, rule.SlotDurationMinutes, rule.BufferMinutes,
		rule.MaxBookingsPerDay, rule.AdvanceBookingDays, rule.MinimumNoticeHours, rule.CanonicalTimezone, rule.IsActive, rule.CreatedAt)
	return err
}

const pgRuleColumns = `id, owner_id, name, description, weekday_mask, windows, slot_duration_minutes, buffer_minutes,
	max_bookings_per_day, advance_booking_days, minimum_notice_hours, canonical_timezone, is_active, created_at`

func scanPgRule(row pgx.Row) (model.AvailabilityRule, error) {
	var rule model.AvailabilityRule
	var mask, windows []byte
	err := row.Scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.Name,
		&rule.Description,
		&mask,
		&windows,
		&rule.SlotDurationMinutes,
		&rule.BufferMinutes,
		&rule.MaxBookingsPerDay,
		&rule.AdvanceBookingDays,
		&rule.MinimumNoticeHours,
		&rule.CanonicalTimezone,
		&rule.IsActive,
		&rule.CreatedAt,
	)
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	if err := decodeRuleJSON(&rule, mask, windows); err != nil {
		return model.AvailabilityRule{}, err
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return rule, nil
}

func (s *PostgresStore) GetRule(ctx context.Context, id string) (model.AvailabilityRule, error) {
	rule, err := scanPgRule(s.pool.QueryRow(ctx, `SELECT `+pgRuleColumns+` FROM availability_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AvailabilityRule{}, ErrNotFound
	}
	return rule, err
}

func (s *PostgresStore) ListRules(ctx context.Context, ownerID string) ([]model.AvailabilityRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgRuleColumns+`
		FROM availability_rules
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, listLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		rule, err := scanPgRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

func (s *PostgresStore) SetRuleActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE availability_rules SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) BookedSlots(ctx context.Context, ruleID string, dates []string) (model.SlotSet, error) {
	booked := model.NewSlotSet()
	if len(dates) == 0 {
		return booked, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT canonical_date, canonical_time
		FROM bookings
		WHERE rule_id = $1
			AND canonical_date = ANY($2)
			AND status <> 'cancelled'
	`, ruleID, dates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k model.SlotKey
		if err := rows.Scan(&k.Date, &k.Time); err != nil {
			return nil, err
		}
		booked.Add(k)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return booked, nil
}

func (s *PostgresStore) CountActive(ctx context.Context, ruleID, canonicalDate string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE rule_id = $1 AND canonical_date = $2 AND status <> 'cancelled'
	`, ruleID, canonicalDate).Scan(&n)
	return n, err
}

// Reserve inserts rec unless its canonical slot is live or the day is full, checked in
// that order. The rule row
// is locked for the duration so the capacity count cannot be overtaken; the unique index
// decides slot ownership.
func (s *PostgresStore) Reserve(ctx context.Context, rec model.BookingRecord, maxPerDay int) (ReserveOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM availability_rules WHERE id = $1 FOR UPDATE`, rec.RuleID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	// A live booking on the same slot wins over a full day: the caller lost the slot.
	var n, held int
	if err := tx.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE canonical_time = $3)
		FROM bookings
		WHERE rule_id = $1 AND canonical_date = $2 AND status <> 'cancelled'
	`, rec.RuleID, rec.CanonicalDate, rec.CanonicalTime).Scan(&n, &held); err != nil {
		return 0, err
	}
	if held > 0 {
		return AlreadyTaken, nil
	}
	if n >= maxPerDay {
		return CapacityReached, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings
			(id, rule_id, canonical_date, canonical_time, canonical_timezone, starts_at, duration_minutes,
			 original_date, original_time, requester_timezone, guest_name, guest_email, guest_phone, guest_notes,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, rec.ID, rec.RuleID, rec.CanonicalDate, rec.CanonicalTime, rec.CanonicalTimezone, rec.StartsAt, rec.DurationMinutes,
		rec.OriginalDate, rec.OriginalTime, rec.RequesterTimezone, rec.Guest.Name, rec.Guest.Email, rec.Guest.Phone, rec.Guest.Notes,
		string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if isPgUniqueViolation(err) {
		return AlreadyTaken, nil
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		if isPgUniqueViolation(err) {
			return AlreadyTaken, nil
		}
		return 0, err
	}
	return Admitted, nil
}

const pgBookingColumns = `id, rule_id, canonical_date, canonical_time, canonical_timezone, starts_at, duration_minutes,
	original_date, original_time, requester_timezone, guest_name, guest_email, guest_phone, guest_notes,
	status, created_at, updated_at, cancelled_at`

func scanPgBooking(row pgx.Row) (model.BookingRecord, error) {
	var rec model.BookingRecord
	var status string
	var cancelledAt *time.Time
	err := row.Scan(
		&rec.ID,
		&rec.RuleID,
		&rec.CanonicalDate,
		&rec.CanonicalTime,
		&rec.CanonicalTimezone,
		&rec.StartsAt,
		&rec.DurationMinutes,
		&rec.OriginalDate,
		&rec.OriginalTime,
		&rec.RequesterTimezone,
		&rec.Guest.Name,
		&rec.Guest.Email,
		&rec.Guest.Phone,
		&rec.Guest.Notes,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&cancelledAt,
	)
	if err != nil {
		return model.BookingRecord{}, err
	}
	rec.Status = model.BookingStatus(status)
	rec.StartsAt = rec.StartsAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if cancelledAt != nil {
		at := cancelledAt.UTC()
		rec.CancelledAt = &at
	}
	return rec, nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, id string) (model.BookingRecord, error) {
	rec, err := scanPgBooking(s.pool.QueryRow(ctx, `SELECT `+pgBookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BookingRecord{}, ErrNotFound
	}
	return rec, err
}

// ListBookings returns the bookings of a rule, optionally narrowed to one canonical date.
func (s *PostgresStore) ListBookings(ctx context.Context, ruleID, canonicalDate string) ([]model.BookingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgBookingColumns+`
		FROM bookings
		WHERE rule_id = $1
			AND ($2::text = '' OR canonical_date = $2::text)
		ORDER BY starts_at ASC, created_at ASC
		LIMIT $3
	`, ruleID, canonicalDate, listLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.BookingRecord
	for rows.Next() {
		rec, err := scanPgBooking(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return recs, nil
}

// UpdateStatus moves a booking from one status to another only if it is still in from.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (model.BookingRecord, error) {
	rec, err := scanPgBooking(s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $3::text,
			updated_at = $4,
			cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
		RETURNING `+pgBookingColumns,
		id, string(from), string(to), at))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetBooking(ctx, id); getErr != nil {
			return model.BookingRecord{}, getErr
		}
		return model.BookingRecord{}, ErrStatusConflict
	}
	return rec, err
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
