// Package timeconv converts calendar dates and times of day between IANA time zones.
//
// Dates are civil dates (YYYY-MM-DD) and times of day are minute precision (HH:MM).
// A conversion goes through an absolute instant, so crossing midnight or a DST change
// shifts the resulting date and clock exactly as the zone rules say.
package timeconv

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalidTimezone  = errors.New("invalid timezone")
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	ErrInvalidDate      = errors.New("invalid date")
)

var zones sync.Map // name -> *time.Location

// LoadZone resolves an IANA zone name. "Local" is rejected because it depends on the host.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	zones.Store(name, loc)
	return loc, nil
}

// TimeOfDay is minutes after midnight, 0..1439.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay(hh*60 + mm), nil
}

func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) utcMidnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.utcMidnight().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.utcMidnight().Weekday()
}

// DaysSince is the number of calendar days from other to d (negative if d is earlier).
func (d Date) DaysSince(other Date) int {
	return int(d.utcMidnight().Sub(other.utcMidnight()) / (24 * time.Hour))
}

func (d Date) Before(other Date) bool { return d.DaysSince(other) < 0 }

// At returns the instant of the wall clock tod on d in loc. Wall times that do not
// exist (DST gap) are normalised by the zone rules.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour(), tod.Minute(), 0, 0, loc)
}

// Convert maps a wall clock reading in from to the wall clock reading of the same instant in to.
func Convert(d Date, tod TimeOfDay, from, to *time.Location) (Date, TimeOfDay) {
	t := d.At(tod, from).In(to)
	return DateOf(t), ClockOf(t)
}

// ToCanonical converts (date, timeOfDay) observed in sourceTz into canonicalTz.
func ToCanonical(date, timeOfDay, sourceTz, canonicalTz string) (string, string, error) {
	d, tod, src, err := parseTriple(date, timeOfDay, sourceTz)
	if err != nil {
		return "", "", err
	}
	dst, err := LoadZone(canonicalTz)
	if err != nil {
		return "", "", err
	}
	cd, ct := Convert(d, tod, src, dst)
	return cd.String(), ct.String(), nil
}

// FromCanonical is the inverse of ToCanonical: it renders a canonical reading in targetTz.
func FromCanonical(date, timeOfDay, canonicalTz, targetTz string) (string, string, error) {
	return ToCanonical(date, timeOfDay, canonicalTz, targetTz)
}

// Instant returns the absolute time of (date, timeOfDay) in tz.
func Instant(date, timeOfDay, tz string) (time.Time, error) {
	d, tod, loc, err := parseTriple(date, timeOfDay, tz)
	if err != nil {
		return time.Time{}, err
	}
	return d.At(tod, loc), nil
}

func parseTriple(date, timeOfDay, tz string) (Date, TimeOfDay, *time.Location, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Date{}, 0, nil, err
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return Date{}, 0, nil, err
	}
	loc, err := LoadZone(tz)
	if err != nil {
		return Date{}, 0, nil, err
	}
	return d, tod, loc, nil
}
