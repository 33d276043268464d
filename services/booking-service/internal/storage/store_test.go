package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/meetslot/libs/db"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

type contractStore interface {
	CreateRule(ctx context.Context, rule model.AvailabilityRule) error
	GetRule(ctx context.Context, id string) (model.AvailabilityRule, error)
	ListRules(ctx context.Context, ownerID string) ([]model.AvailabilityRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
	BookedSlots(ctx context.Context, ruleID string, dates []string) (model.SlotSet, error)
	CountActive(ctx context.Context, ruleID, canonicalDate string) (int, error)
	Reserve(ctx context.Context, rec model.BookingRecord, maxPerDay int) (ReserveOutcome, error)
	GetBooking(ctx context.Context, id string) (model.BookingRecord, error)
	ListBookings(ctx context.Context, ruleID, canonicalDate string) ([]model.BookingRecord, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) (model.BookingRecord, error)
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "meetslot.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	runContract(t, openSQLite(t))
}

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, db.Options{MaxConns: 8})
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(pool.Close)
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	runContract(t, s)
}

func testRule(owner string) model.AvailabilityRule {
	r := model.AvailabilityRule{
		ID:                  uuid.NewString(),
		OwnerID:             owner,
		Name:                "Discovery",
		WeekdayMask:         []int{1, 2, 3, 4, 5},
		Windows:             []model.Window{{Start: "09:00", End: "12:00", Timezone: "Europe/Berlin"}},
		SlotDurationMinutes: 30,
		MaxBookingsPerDay:   2,
		MinimumNoticeHours:  -1,
		IsActive:            true,
		CreatedAt:           time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	r.ApplyDefaults()
	return r
}

func testBooking(ruleID, date, clock string) model.BookingRecord {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	return model.BookingRecord{
		ID:                uuid.NewString(),
		RuleID:            ruleID,
		CanonicalDate:     date,
		CanonicalTime:     clock,
		CanonicalTimezone: "UTC",
		StartsAt:          time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC),
		DurationMinutes:   30,
		OriginalDate:      date,
		OriginalTime:      clock,
		RequesterTimezone: "UTC",
		Guest:             model.Guest{Name: "Grace", Email: "grace@example.com"},
		Status:            model.StatusConfirmed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func runContract(t *testing.T, s contractStore) {
	ctx := context.Background()
	owner := uuid.NewString()
	rule := testRule(owner)
	if err := s.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	t.Run("rule round trip", func(t *testing.T) {
		got, err := s.GetRule(ctx, rule.ID)
		if err != nil {
			t.Fatalf("GetRule: %v", err)
		}
		if got.Name != rule.Name || len(got.Windows) != 1 || got.Windows[0].Timezone != "Europe/Berlin" || len(got.WeekdayMask) != 5 {
			t.Fatalf("unexpected rule %+v", got)
		}
		if !got.IsActive || !got.CreatedAt.Equal(rule.CreatedAt) {
			t.Fatalf("unexpected metadata %+v", got)
		}
		if _, err := s.GetRule(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		rules, err := s.ListRules(ctx, owner)
		if err != nil || len(rules) != 1 {
			t.Fatalf("ListRules: %d rules, err %v", len(rules), err)
		}
	})

	t.Run("reserve is exclusive per canonical slot", func(t *testing.T) {
		first := testBooking(rule.ID, "2025-06-16", "09:00")
		out, err := s.Reserve(ctx, first, rule.MaxBookingsPerDay)
		if err != nil || out != Admitted {
			t.Fatalf("first Reserve: %v %v", out, err)
		}
		dup := testBooking(rule.ID, "2025-06-16", "09:00")
		out, err = s.Reserve(ctx, dup, rule.MaxBookingsPerDay)
		if err != nil || out != AlreadyTaken {
			t.Fatalf("duplicate Reserve: %v %v", out, err)
		}
		if _, err := s.GetBooking(ctx, dup.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("rejected booking must not be stored, got %v", err)
		}

		booked, err := s.BookedSlots(ctx, rule.ID, []string{"2025-06-16", "2025-06-17"})
		if err != nil {
			t.Fatalf("BookedSlots: %v", err)
		}
		if !booked.Has(model.SlotKey{Date: "2025-06-16", Time: "09:00"}) || len(booked) != 1 {
			t.Fatalf("unexpected booked set %v", booked)
		}
	})

	t.Run("capacity counts live bookings only", func(t *testing.T) {
		second := testBooking(rule.ID, "2025-06-16", "09:30")
		if out, err := s.Reserve(ctx, second, rule.MaxBookingsPerDay); err != nil || out != Admitted {
			t.Fatalf("second Reserve: %v %v", out, err)
		}
		third := testBooking(rule.ID, "2025-06-16", "10:00")
		if out, err := s.Reserve(ctx, third, rule.MaxBookingsPerDay); err != nil || out != CapacityReached {
			t.Fatalf("third Reserve: %v %v", out, err)
		}

		at := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
		cancelled, err := s.UpdateStatus(ctx, second.ID, model.StatusConfirmed, model.StatusCancelled, at)
		if err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		if cancelled.Status != model.StatusCancelled || cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(at) {
			t.Fatalf("unexpected cancelled booking %+v", cancelled)
		}
		n, err := s.CountActive(ctx, rule.ID, "2025-06-16")
		if err != nil || n != 1 {
			t.Fatalf("CountActive = %d, %v", n, err)
		}
		if out, err := s.Reserve(ctx, third, rule.MaxBookingsPerDay); err != nil || out != Admitted {
			t.Fatalf("Reserve after cancel: %v %v", out, err)
		}

		again := testBooking(rule.ID, "2025-06-16", "09:30")
		if out, err := s.Reserve(ctx, again, rule.MaxBookingsPerDay+1); err != nil || out != Admitted {
			t.Fatalf("cancelled slot should be free again: %v %v", out, err)
		}
	})

	t.Run("held slot on a full day reports taken", func(t *testing.T) {
		if out, err := s.Reserve(ctx, testBooking(rule.ID, "2025-06-18", "09:00"), 1); err != nil || out != Admitted {
			t.Fatalf("Reserve: %v %v", out, err)
		}
		if out, err := s.Reserve(ctx, testBooking(rule.ID, "2025-06-18", "09:00"), 1); err != nil || out != AlreadyTaken {
			t.Fatalf("same slot: %v %v", out, err)
		}
		if out, err := s.Reserve(ctx, testBooking(rule.ID, "2025-06-18", "09:30"), 1); err != nil || out != CapacityReached {
			t.Fatalf("other slot: %v %v", out, err)
		}
	})

	t.Run("conditional status update", func(t *testing.T) {
		rec := testBooking(rule.ID, "2025-06-17", "09:00")
		if out, err := s.Reserve(ctx, rec, rule.MaxBookingsPerDay); err != nil || out != Admitted {
			t.Fatalf("Reserve: %v %v", out, err)
		}
		at := time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)
		done, err := s.UpdateStatus(ctx, rec.ID, model.StatusConfirmed, model.StatusCompleted, at)
		if err != nil || done.Status != model.StatusCompleted || done.CancelledAt != nil {
			t.Fatalf("complete: %+v %v", done, err)
		}
		if _, err := s.UpdateStatus(ctx, rec.ID, model.StatusConfirmed, model.StatusCancelled, at); !errors.Is(err, ErrStatusConflict) {
			t.Fatalf("expected ErrStatusConflict, got %v", err)
		}
		if _, err := s.UpdateStatus(ctx, uuid.NewString(), model.StatusConfirmed, model.StatusCancelled, at); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list bookings", func(t *testing.T) {
		all, err := s.ListBookings(ctx, rule.ID, "")
		if err != nil {
			t.Fatalf("ListBookings: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("expected 5 bookings, got %d", len(all))
		}
		day, err := s.ListBookings(ctx, rule.ID, "2025-06-17")
		if err != nil || len(day) != 1 {
			t.Fatalf("ListBookings(date): %d, %v", len(day), err)
		}
	})

	t.Run("deactivate", func(t *testing.T) {
		if err := s.SetRuleActive(ctx, rule.ID, false); err != nil {
			t.Fatalf("SetRuleActive: %v", err)
		}
		got, err := s.GetRule(ctx, rule.ID)
		if err != nil || got.IsActive {
			t.Fatalf("expected inactive rule, got %+v %v", got, err)
		}
		if err := s.SetRuleActive(ctx, uuid.NewString(), true); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reserve unknown rule", func(t *testing.T) {
		if _, err := s.Reserve(ctx, testBooking(uuid.NewString(), "2025-06-16", "09:00"), 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteReserveConcurrent(t *testing.T) {
	for _, maxPerDay := range []int{50, 1} {
		t.Run(fmt.Sprintf("max %d per day", maxPerDay), func(t *testing.T) {
			s := openSQLite(t)
			ctx := context.Background()
			rule := testRule("owner")
			rule.MaxBookingsPerDay = maxPerDay
			if err := s.CreateRule(ctx, rule); err != nil {
				t.Fatalf("CreateRule: %v", err)
			}

			const n = 16
			var wg sync.WaitGroup
			outcomes := make(chan ReserveOutcome, n)
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					out, err := s.Reserve(ctx, testBooking(rule.ID, "2025-06-16", "09:00"), rule.MaxBookingsPerDay)
					if err != nil {
						errs <- err
						return
					}
					outcomes <- out
				}()
			}
			wg.Wait()
			close(outcomes)
			close(errs)

			for err := range errs {
				t.Fatalf("Reserve: %v", err)
			}
			counts := map[ReserveOutcome]int{}
			for out := range outcomes {
				counts[out]++
			}
			if counts[Admitted] != 1 || counts[AlreadyTaken] != n-1 {
				t.Fatalf("expected 1 admitted and %d taken, got %v", n-1, counts)
			}
		})
	}
}
