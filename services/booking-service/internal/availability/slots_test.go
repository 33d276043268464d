package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
)

func weekdayRule(windows ...model.Window) model.AvailabilityRule {
	r := model.AvailabilityRule{
		Name:                "Consult",
		WeekdayMask:         []int{1, 2, 3, 4, 5},
		Windows:             windows,
		SlotDurationMinutes: 30,
		MinimumNoticeHours:  -1,
	}
	r.ApplyDefaults()
	return r
}

func starts(slots []model.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start)
	}
	return out
}

func TestGenerateSlots_UTCWorkday(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})

	slots, err := GenerateSlots(rule, "2025-06-16", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d: %v", len(slots), starts(slots))
	}
	if slots[0].Start != "09:00" || slots[15].Start != "16:30" || slots[15].End != "17:00" {
		t.Fatalf("unexpected bounds %s..%s-%s", slots[0].Start, slots[15].Start, slots[15].End)
	}
	for i := 1; i < len(slots); i++ {
		if gap := slots[i].StartsAt.Sub(slots[i-1].StartsAt); gap < 30*time.Minute {
			t.Fatalf("slots %d and %d only %s apart", i-1, i, gap)
		}
	}
}

func TestGenerateSlots_RequesterZone(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})

	slots, err := GenerateSlots(rule, "2025-06-16", nil, "America/New_York")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	first := slots[0]
	if first.Date != "2025-06-16" || first.Start != "05:00" || first.Timezone != "America/New_York" {
		t.Fatalf("expected 2025-06-16 05:00 New York, got %+v", first)
	}
	if first.CanonicalDate != "2025-06-16" || first.CanonicalTime != "09:00" {
		t.Fatalf("expected canonical 2025-06-16 09:00, got %s %s", first.CanonicalDate, first.CanonicalTime)
	}
	if slots[15].Start != "12:30" {
		t.Fatalf("expected last slot 12:30, got %s", slots[15].Start)
	}
}

func TestGenerateSlots_WindowSplitAcrossRequesterMidnight(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})

	// Monday 09:00-17:00 UTC is 18:00-02:00 in Tokyo.
	monday, err := GenerateSlots(rule, "2025-06-16", nil, "Asia/Tokyo")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(monday) != 12 || monday[0].Start != "18:00" || monday[11].Start != "23:30" {
		t.Fatalf("unexpected Monday slots %v", starts(monday))
	}

	tuesday, err := GenerateSlots(rule, "2025-06-17", nil, "Asia/Tokyo")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(tuesday) != 16 {
		t.Fatalf("expected 4 carried over + 12 own slots, got %d: %v", len(tuesday), starts(tuesday))
	}
	if tuesday[0].Start != "00:00" || tuesday[0].CanonicalDate != "2025-06-16" || tuesday[0].CanonicalTime != "15:00" {
		t.Fatalf("unexpected first Tuesday slot %+v", tuesday[0])
	}
}

func TestGenerateSlots_WeekdayFollowsWindowZone(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "22:00", End: "23:59", Timezone: "America/New_York"})
	rule.WeekdayMask = []int{1}

	// Monday 22:00 New York is Tuesday 02:00 UTC.
	slots, err := GenerateSlots(rule, "2025-06-17", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if !reflect.DeepEqual(starts(slots), []string{"02:00", "02:30", "03:00"}) {
		t.Fatalf("unexpected slots %v", starts(slots))
	}
	none, err := GenerateSlots(rule, "2025-06-16", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no slots on UTC Monday, got %v", starts(none))
	}
}

func TestGenerateSlots_Buffer(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})
	rule.BufferMinutes = 15

	slots, err := GenerateSlots(rule, "2025-06-16", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d: %v", len(slots), starts(slots))
	}
	if slots[1].Start != "09:45" || slots[10].Start != "16:30" {
		t.Fatalf("unexpected spacing %v", starts(slots))
	}
}

func TestGenerateSlots_EmptyCases(t *testing.T) {
	short := weekdayRule(model.Window{Start: "09:00", End: "09:20", Timezone: "UTC"})
	slots, err := GenerateSlots(short, "2025-06-16", nil, "UTC")
	if err != nil || len(slots) != 0 {
		t.Fatalf("short window: expected no slots, got %v (err %v)", starts(slots), err)
	}

	bare := weekdayRule()
	slots, err = GenerateSlots(bare, "2025-06-16", nil, "UTC")
	if err != nil || len(slots) != 0 {
		t.Fatalf("no windows: expected no slots, got %v (err %v)", starts(slots), err)
	}

	weekend := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})
	slots, err = GenerateSlots(weekend, "2025-06-15", nil, "UTC")
	if err != nil || len(slots) != 0 {
		t.Fatalf("sunday: expected no slots, got %v (err %v)", starts(slots), err)
	}
}

func TestGenerateSlots_ExcludesBooked(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})
	rule.CanonicalTimezone = "America/New_York"

	booked := model.NewSlotSet(model.SlotKey{Date: "2025-06-16", Time: "05:30"})
	slots, err := GenerateSlots(rule, "2025-06-16", booked, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start == "09:30" {
			t.Fatalf("booked slot 09:30 UTC (05:30 New York) still offered")
		}
	}
}

func TestGenerateSlots_OverlappingAndMixedZoneWindows(t *testing.T) {
	rule := weekdayRule(
		model.Window{Start: "09:00", End: "10:00", Timezone: "UTC"},
		model.Window{Start: "09:30", End: "11:00", Timezone: "UTC"},
		model.Window{Start: "09:00", End: "10:00", Timezone: "America/New_York"},
	)
	slots, err := GenerateSlots(rule, "2025-06-16", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "13:00", "13:30"}
	if !reflect.DeepEqual(starts(slots), want) {
		t.Fatalf("expected %v, got %v", want, starts(slots))
	}
}

func TestGenerateSlots_DST(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "09:30", Timezone: "America/New_York"})

	before, err := GenerateSlots(rule, "2025-03-07", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	after, err := GenerateSlots(rule, "2025-03-10", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(before) != 1 || before[0].Start != "14:00" || len(after) != 1 || after[0].Start != "13:00" {
		t.Fatalf("expected 14:00 then 13:00, got %v / %v", starts(before), starts(after))
	}
}

func TestGenerateSlots_CanonicalFallBackOffersEachKeyOnce(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "05:00", End: "07:00", Timezone: "UTC"})
	rule.WeekdayMask = []int{0}
	rule.CanonicalTimezone = "America/New_York"

	// 05:00Z/06:00Z are both 01:00 in New York on 2025-11-02, as are 05:30Z/06:30Z.
	got, err := GenerateSlots(rule, "2025-11-02", nil, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if want := []string{"05:00", "05:30"}; !reflect.DeepEqual(starts(got), want) {
		t.Fatalf("got %v want %v", starts(got), want)
	}
	if got[1].CanonicalTime != "01:30" || got[1].CanonicalDate != "2025-11-02" {
		t.Fatalf("unexpected canonical key %+v", got[1])
	}

	booked := model.NewSlotSet(model.SlotKey{Date: "2025-11-02", Time: "01:30"})
	got, err = GenerateSlots(rule, "2025-11-02", booked, "UTC")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if want := []string{"05:00"}; !reflect.DeepEqual(starts(got), want) {
		t.Fatalf("got %v want %v", starts(got), want)
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	rule := weekdayRule(
		model.Window{Start: "08:00", End: "12:00", Timezone: "Europe/Berlin"},
		model.Window{Start: "13:00", End: "18:00", Timezone: "Asia/Kolkata"},
	)
	rule.BufferMinutes = 10
	booked := model.NewSlotSet(model.SlotKey{Date: "2025-06-16", Time: "06:40"})

	a, err := GenerateSlots(rule, "2025-06-16", booked, "America/Sao_Paulo")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	b, err := GenerateSlots(rule, "2025-06-16", booked, "America/Sao_Paulo")
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated calls returned different slots")
	}
}

func TestGenerateSlots_InvalidInput(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})
	if _, err := GenerateSlots(rule, "2025-06-16", nil, "Mars/Base"); !errors.Is(err, timeconv.ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
	if _, err := GenerateSlots(rule, "16-06-2025", nil, "UTC"); !errors.Is(err, timeconv.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCanonicalDates(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "17:00", Timezone: "UTC"})
	dates, err := CanonicalDates(rule, "2025-06-16", "America/New_York")
	if err != nil {
		t.Fatalf("CanonicalDates: %v", err)
	}
	if !reflect.DeepEqual(dates, []string{"2025-06-16", "2025-06-17"}) {
		t.Fatalf("unexpected dates %v", dates)
	}
	dates, err = CanonicalDates(rule, "2025-06-16", "UTC")
	if err != nil {
		t.Fatalf("CanonicalDates: %v", err)
	}
	if !reflect.DeepEqual(dates, []string{"2025-06-16"}) {
		t.Fatalf("unexpected dates %v", dates)
	}
}

func TestFind(t *testing.T) {
	rule := weekdayRule(model.Window{Start: "09:00", End: "10:00", Timezone: "UTC"})
	slots, _ := GenerateSlots(rule, "2025-06-16", nil, "UTC")
	if _, ok := Find(slots, time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)); !ok {
		t.Fatal("expected 09:30 to be found")
	}
	if _, ok := Find(slots, time.Date(2025, 6, 16, 9, 15, 0, 0, time.UTC)); ok {
		t.Fatal("09:15 is off the grid")
	}
}
