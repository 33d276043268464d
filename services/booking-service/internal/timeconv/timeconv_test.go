package timeconv

import (
	"errors"
	"testing"
	"time"
)

func TestToCanonical_CrossesMidnight(t *testing.T) {
	d, tod, err := ToCanonical("2025-06-16", "22:30", "America/New_York", "UTC")
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if d != "2025-06-17" || tod != "02:30" {
		t.Fatalf("expected 2025-06-17 02:30, got %s %s", d, tod)
	}

	d, tod, err = ToCanonical("2025-06-16", "01:15", "UTC", "Asia/Tokyo")
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if d != "2025-06-16" || tod != "10:15" {
		t.Fatalf("expected 2025-06-16 10:15, got %s %s", d, tod)
	}

	d, tod, err = ToCanonical("2025-01-01", "00:10", "UTC", "America/Los_Angeles")
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if d != "2024-12-31" || tod != "16:10" {
		t.Fatalf("expected 2024-12-31 16:10, got %s %s", d, tod)
	}
}

func TestToCanonical_HonoursDST(t *testing.T) {
	// Same wall clock, different offsets either side of the US change.
	_, winter, err := ToCanonical("2025-03-08", "09:00", "America/New_York", "UTC")
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	_, summer, err := ToCanonical("2025-03-10", "09:00", "America/New_York", "UTC")
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if winter != "14:00" || summer != "13:00" {
		t.Fatalf("expected 14:00 / 13:00, got %s / %s", winter, summer)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		date, tod, a, b string
	}{
		{"2025-06-16", "09:00", "UTC", "America/New_York"},
		{"2025-03-09", "01:30", "America/New_York", "Europe/London"},
		{"2025-03-09", "03:30", "America/New_York", "UTC"},
		{"2025-11-02", "00:45", "America/New_York", "Asia/Kolkata"},
		{"2025-11-02", "03:00", "America/New_York", "Australia/Sydney"},
		{"2025-03-30", "00:59", "Europe/London", "Asia/Kathmandu"},
		{"2025-10-26", "03:00", "Europe/Berlin", "Pacific/Kiritimati"},
		{"2025-12-31", "23:59", "Pacific/Honolulu", "Pacific/Auckland"},
		{"2024-02-29", "12:00", "Asia/Tehran", "America/St_Johns"},
	}
	for _, tc := range cases {
		d, tod, err := ToCanonical(tc.date, tc.tod, tc.a, tc.b)
		if err != nil {
			t.Fatalf("ToCanonical(%v): %v", tc, err)
		}
		backDate, backTod, err := FromCanonical(d, tod, tc.b, tc.a)
		if err != nil {
			t.Fatalf("FromCanonical(%v): %v", tc, err)
		}
		if backDate != tc.date || backTod != tc.tod {
			t.Fatalf("round trip %s %s %s->%s: got %s %s", tc.date, tc.tod, tc.a, tc.b, backDate, backTod)
		}
	}
}

func TestInvalidInputs(t *testing.T) {
	if _, _, err := ToCanonical("2025-06-16", "09:00", "Mars/Olympus", "UTC"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
	if _, _, err := ToCanonical("2025-06-16", "09:00", "UTC", "Local"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone for Local, got %v", err)
	}
	for _, bad := range []string{"9am", "24:00", "12:60", "12:5", "+1:00", "", "123:00"} {
		if _, err := ParseTimeOfDay(bad); !errors.Is(err, ErrInvalidTimeOfDay) {
			t.Fatalf("expected ErrInvalidTimeOfDay for %q, got %v", bad, err)
		}
	}
	for _, bad := range []string{"2025-02-30", "16/06/2025", ""} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %q, got %v", bad, err)
		}
	}
}

func TestParseTimeOfDay_AcceptsSingleDigitHour(t *testing.T) {
	tod, err := ParseTimeOfDay("9:05")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	if tod.String() != "09:05" {
		t.Fatalf("expected 09:05, got %s", tod)
	}
}

func TestDateArithmetic(t *testing.T) {
	d, _ := ParseDate("2025-06-16")
	if d.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", d.Weekday())
	}
	if got := d.AddDays(16).String(); got != "2025-07-02" {
		t.Fatalf("expected 2025-07-02, got %s", got)
	}
	other, _ := ParseDate("2025-03-01")
	if n := d.DaysSince(other); n != 107 {
		t.Fatalf("expected 107 days, got %d", n)
	}
}

func TestCommonZonesSortedByOffset(t *testing.T) {
	zones := CommonZones(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	if len(zones) == 0 {
		t.Fatal("expected zones")
	}
	if zones[0].Name != "Pacific/Honolulu" {
		t.Fatalf("expected Honolulu first, got %s", zones[0].Name)
	}
	if zones[len(zones)-1].Name != "Pacific/Kiritimati" {
		t.Fatalf("expected Kiritimati last, got %s", zones[len(zones)-1].Name)
	}
}
