package model

import "time"

// SlotKey identifies a slot by its canonical date and time of day.
type SlotKey struct {
	Date string
	Time string
}

type SlotSet map[SlotKey]struct{}

func NewSlotSet(keys ...SlotKey) SlotSet {
	s := make(SlotSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s SlotSet) Add(k SlotKey) { s[k] = struct{}{} }

func (s SlotSet) Has(k SlotKey) bool {
	_, ok := s[k]
	return ok
}

// Slot is a bookable start derived from a rule. Date/Start/End are in Timezone (the
// requester's zone); it is never persisted.
type Slot struct {
	Date          string    `json:"date"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Timezone      string    `json:"timezone"`
	StartsAt      time.Time `json:"starts_at"`
	CanonicalDate string    `json:"canonical_date"`
	CanonicalTime string    `json:"canonical_time"`
}

func (s Slot) Key() SlotKey {
	return SlotKey{Date: s.CanonicalDate, Time: s.CanonicalTime}
}
