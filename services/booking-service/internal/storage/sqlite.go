package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTime is fixed width so stored timestamps sort lexically.
const sqliteTime = "2006-01-02 15:04:05.000000"

// SQLiteStore is a single-connection store for development and tests. Writers are
// serialised by the connection and by IMMEDIATE transactions.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path (a file path or ":memory:") and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)

	ddl, err := schemaFS.ReadFile("schema/sqlite.sql")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, string(ddl)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) CreateRule(ctx context.Context, rule model.AvailabilityRule) error {
	mask, windows, err := encodeRuleJSON(rule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO availability_rules
			(id, owner_id, name, description, weekday_mask, windows, slot_duration_minutes, buffer_minutes,
			 max_bookings_per_day, advance_booking_days, minimum_notice_hours, canonical_timezone, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.OwnerID, rule.Name, rule.Description, string(mask), string(windows), rule.SlotDurationMinutes, rule.BufferMinutes,
		rule.MaxBookingsPerDay, rule.AdvanceBookingDays, rule.MinimumNoticeHours, rule.CanonicalTimezone, rule.IsActive, formatSQLiteTime(rule.CreatedAt))
	return err
}

const sqliteRuleColumns = `id, owner_id, name, description, weekday_mask, windows, slot_duration_minutes, buffer_minutes,
	max_bookings_per_day, advance_booking_days, minimum_notice_hours, canonical_timezone, is_active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRule(row scanner) (model.AvailabilityRule, error) {
	var rule model.AvailabilityRule
	var mask, windows, createdAt string
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
		&createdAt,
	)
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	if err := decodeRuleJSON(&rule, []byte(mask), []byte(windows)); err != nil {
		return model.AvailabilityRule{}, err
	}
	if rule.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return model.AvailabilityRule{}, err
	}
	return rule, nil
}

func (s *SQLiteStore) GetRule(ctx context.Context, id string) (model.AvailabilityRule, error) {
	rule, err := scanSQLiteRule(s.db.QueryRowContext(ctx, `SELECT `+sqliteRuleColumns+` FROM availability_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AvailabilityRule{}, ErrNotFound
	}
	return rule, err
}

func (s *SQLiteStore) ListRules(ctx context.Context, ownerID string) ([]model.AvailabilityRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteRuleColumns+`
		FROM availability_rules
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, ownerID, listLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		rule, err := scanSQLiteRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *SQLiteStore) SetRuleActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE availability_rules SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) BookedSlots(ctx context.Context, ruleID string, dates []string) (model.SlotSet, error) {
	booked := model.NewSlotSet()
	if len(dates) == 0 {
		return booked, nil
	}
	args := make([]any, 0, len(dates)+1)
	args = append(args, ruleID)
	for _, d := range dates {
		args = append(args, d)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dates)), ",")
	rows, err := s.db.QueryContext(ctx, `
		SELECT canonical_date, canonical_time
		FROM bookings
		WHERE rule_id = ?
			AND canonical_date IN (`+placeholders+`)
			AND status <> 'cancelled'
	`, args...)
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
	return booked, rows.Err()
}

func (s *SQLiteStore) CountActive(ctx context.Context, ruleID, canonicalDate string) (int, error) {
	return countActive(ctx, s.db, ruleID, canonicalDate)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countActive(ctx context.Context, q queryRower, ruleID, canonicalDate string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE rule_id = ? AND canonical_date = ? AND status <> 'cancelled'
	`, ruleID, canonicalDate).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Reserve(ctx context.Context, rec model.BookingRecord, maxPerDay int) (ReserveOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM availability_rules WHERE id = ?`, rec.RuleID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var n, held int
	if err := tx.QueryRowContext(ctx, `
		SELECT count(*), coalesce(sum(canonical_time = ?), 0)
		FROM bookings
		WHERE rule_id = ? AND canonical_date = ? AND status <> 'cancelled'
	`, rec.CanonicalTime, rec.RuleID, rec.CanonicalDate).Scan(&n, &held); err != nil {
		return 0, err
	}
	if held > 0 {
		return AlreadyTaken, nil
	}
	if n >= maxPerDay {
		return CapacityReached, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings
			(id, rule_id, canonical_date, canonical_time, canonical_timezone, starts_at, duration_minutes,
			 original_date, original_time, requester_timezone, guest_name, guest_email, guest_phone, guest_notes,
			 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.RuleID, rec.CanonicalDate, rec.CanonicalTime, rec.CanonicalTimezone, formatSQLiteTime(rec.StartsAt), rec.DurationMinutes,
		rec.OriginalDate, rec.OriginalTime, rec.RequesterTimezone, rec.Guest.Name, rec.Guest.Email, rec.Guest.Phone, rec.Guest.Notes,
		string(rec.Status), formatSQLiteTime(rec.CreatedAt), formatSQLiteTime(rec.UpdatedAt))
	if isSQLiteUniqueViolation(err) {
		return AlreadyTaken, nil
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return Admitted, nil
}

const sqliteBookingColumns = `id, rule_id, canonical_date, canonical_time, canonical_timezone, starts_at, duration_minutes,
	original_date, original_time, requester_timezone, guest_name, guest_email, guest_phone, guest_notes,
	status, created_at, updated_at, cancelled_at`

func scanSQLiteBooking(row scanner) (model.BookingRecord, error) {
	var rec model.BookingRecord
	var status, startsAt, createdAt, updatedAt string
	var cancelledAt sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.RuleID,
		&rec.CanonicalDate,
		&rec.CanonicalTime,
		&rec.CanonicalTimezone,
		&startsAt,
		&rec.DurationMinutes,
		&rec.OriginalDate,
		&rec.OriginalTime,
		&rec.RequesterTimezone,
		&rec.Guest.Name,
		&rec.Guest.Email,
		&rec.Guest.Phone,
		&rec.Guest.Notes,
		&status,
		&createdAt,
		&updatedAt,
		&cancelledAt,
	)
	if err != nil {
		return model.BookingRecord{}, err
	}
	rec.Status = model.BookingStatus(status)
	if rec.StartsAt, err = parseSQLiteTime(startsAt); err != nil {
		return model.BookingRecord{}, err
	}
	if rec.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return model.BookingRecord{}, err
	}
	if rec.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return model.BookingRecord{}, err
	}
	if cancelledAt.Valid {
		at, err := parseSQLiteTime(cancelledAt.String)
		if err != nil {
			return model.BookingRecord{}, err
		}
		rec.CancelledAt = &at
	}
	return rec, nil
}

func (s *SQLiteStore) GetBooking(ctx context.Context, id string) (model.BookingRecord, error) {
	rec, err := scanSQLiteBooking(s.db.QueryRowContext(ctx, `SELECT `+sqliteBookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) ListBookings(ctx context.Context, ruleID, canonicalDate string) ([]model.BookingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteBookingColumns+`
		FROM bookings
		WHERE rule_id = ?
			AND (? = '' OR canonical_date = ?)
		ORDER BY starts_at ASC, created_at ASC
		LIMIT ?
	`, ruleID, canonicalDate, canonicalDate, listLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.BookingRecord
	for rows.Next() {
		rec, err := scanSQLiteBooking(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (model.BookingRecord, error) {
	ts := formatSQLiteTime(at)
	var cancelledAt any
	if to == model.StatusCancelled {
		cancelledAt = ts
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?,
			updated_at = ?,
			cancelled_at = COALESCE(?, cancelled_at)
		WHERE id = ? AND status = ?
	`, string(to), ts, cancelledAt, id, string(from))
	if err != nil {
		return model.BookingRecord{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.BookingRecord{}, err
	}
	rec, err := s.GetBooking(ctx, id)
	if err != nil {
		return model.BookingRecord{}, err
	}
	if n == 0 {
		return model.BookingRecord{}, ErrStatusConflict
	}
	return rec, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseSQLiteTime(s string) (time.Time, error) {
	return time.ParseInLocation(sqliteTime, s, time.UTC)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
