package model

import (
	"net/mail"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no-show"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// HoldsSlot reports whether a booking in this status occupies its canonical slot.
func (s BookingStatus) HoldsSlot() bool {
	return s.Valid() && s != StatusCancelled
}

// CanTransition: confirmed moves to any terminal state; terminal states never move.
func CanTransition(from, to BookingStatus) bool {
	return from == StatusConfirmed && to.Terminal()
}

type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

func (g Guest) Normalize() Guest {
	return Guest{
		Name:  strings.TrimSpace(g.Name),
		Email: strings.ToLower(strings.TrimSpace(g.Email)),
		Phone: strings.TrimSpace(g.Phone),
		Notes: strings.TrimSpace(g.Notes),
	}
}

func (g Guest) Valid() bool {
	if g.Name == "" || g.Email == "" {
		return false
	}
	addr, err := mail.ParseAddress(g.Email)
	return err == nil && addr.Address == g.Email
}

// BookingRecord is a persisted admission. CanonicalDate/CanonicalTime in the rule's
// canonical timezone form the uniqueness key; the Original fields are what the guest saw.
type BookingRecord struct {
	ID                string        `json:"id"`
	RuleID            string        `json:"meeting_type_id"`
	CanonicalDate     string        `json:"canonical_date"`
	CanonicalTime     string        `json:"canonical_time"`
	CanonicalTimezone string        `json:"canonical_timezone"`
	StartsAt          time.Time     `json:"starts_at"`
	DurationMinutes   int           `json:"duration_minutes"`
	OriginalDate      string        `json:"original_date"`
	OriginalTime      string        `json:"original_time"`
	RequesterTimezone string        `json:"requester_timezone"`
	Guest             Guest         `json:"guest"`
	Status            BookingStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`
}

func (b BookingRecord) Key() SlotKey {
	return SlotKey{Date: b.CanonicalDate, Time: b.CanonicalTime}
}

func (b BookingRecord) EndsAt() time.Time {
	return b.StartsAt.Add(time.Duration(b.DurationMinutes) * time.Minute)
}
