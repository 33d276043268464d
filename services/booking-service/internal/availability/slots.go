package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/timeconv"
)

// sourceDaySpread is how many source-zone days either side of the requested day can
// contribute slots. Zone offsets differ by at most 26h, so two days is enough.
const sourceDaySpread = 2

// GenerateSlots lists the open slots of rule on the calendar day date as observed in
// requesterTz. Slots whose canonical key is in booked are left out. The result is in
// chronological order and depends only on the arguments.
func GenerateSlots(rule model.AvailabilityRule, date string, booked model.SlotSet, requesterTz string) ([]model.Slot, error) {
	day, err := timeconv.ParseDate(date)
	if err != nil {
		return nil, err
	}
	reqLoc, err := timeconv.LoadZone(requesterTz)
	if err != nil {
		return nil, err
	}
	canLoc, err := timeconv.LoadZone(rule.CanonicalTimezone)
	if err != nil {
		return nil, err
	}

	duration := rule.SlotDuration()
	step := rule.Step()
	seen := make(map[int64]struct{})
	var out []model.Slot

	for i, w := range rule.Windows {
		start, end, err := w.Bounds()
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		srcLoc, err := timeconv.LoadZone(w.Zone(rule.CanonicalTimezone))
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		for off := -sourceDaySpread; off <= sourceDaySpread; off++ {
			src := day.AddDays(off)
			// The weekday belongs to the day the window is defined on.
			if !rule.AllowsWeekday(src.Weekday()) {
				continue
			}
			for _, t := range windowStarts(src.At(start, srcLoc), src.At(end, srcLoc), duration, step) {
				local := t.In(reqLoc)
				if timeconv.DateOf(local) != day {
					continue
				}
				if _, dup := seen[t.Unix()]; dup {
					continue
				}
				canon := t.In(canLoc)
				slot := model.Slot{
					Date:          day.String(),
					Start:         timeconv.ClockOf(local).String(),
					End:           timeconv.ClockOf(local.Add(duration)).String(),
					Timezone:      requesterTz,
					StartsAt:      t.UTC(),
					CanonicalDate: timeconv.DateOf(canon).String(),
					CanonicalTime: timeconv.ClockOf(canon).String(),
				}
				if booked.Has(slot.Key()) {
					continue
				}
				seen[t.Unix()] = struct{}{}
				out = append(out, slot)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return firstPerKey(out), nil
}

// firstPerKey keeps the earliest slot for each canonical key. When the canonical zone
// falls back, two instants share a wall-clock reading and only one can be booked.
func firstPerKey(slots []model.Slot) []model.Slot {
	kept := make(map[model.SlotKey]struct{}, len(slots))
	out := slots[:0]
	for _, s := range slots {
		if _, dup := kept[s.Key()]; dup {
			continue
		}
		kept[s.Key()] = struct{}{}
		out = append(out, s)
	}
	return out
}

// windowStarts returns slot start times within [windowStart, windowEnd) where a slot of
// length duration still ends by windowEnd. Consecutive starts are step apart.
func windowStarts(windowStart, windowEnd time.Time, duration, step time.Duration) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	var starts []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		starts = append(starts, t)
	}
	return starts
}

// CanonicalDates lists the canonical-zone dates that overlap the requester's calendar
// day. Booked keys for these dates are what GenerateSlots needs to see.
func CanonicalDates(rule model.AvailabilityRule, date, requesterTz string) ([]string, error) {
	day, err := timeconv.ParseDate(date)
	if err != nil {
		return nil, err
	}
	reqLoc, err := timeconv.LoadZone(requesterTz)
	if err != nil {
		return nil, err
	}
	canLoc, err := timeconv.LoadZone(rule.CanonicalTimezone)
	if err != nil {
		return nil, err
	}
	first := timeconv.DateOf(day.At(0, reqLoc).In(canLoc))
	last := timeconv.DateOf(day.AddDays(1).At(0, reqLoc).Add(-time.Minute).In(canLoc))
	var dates []string
	for d := first; !last.Before(d); d = d.AddDays(1) {
		dates = append(dates, d.String())
	}
	return dates, nil
}

// Find returns the slot starting at instant, if any.
func Find(slots []model.Slot, instant time.Time) (model.Slot, bool) {
	for _, s := range slots {
		if s.StartsAt.Equal(instant) {
			return s, true
		}
	}
	return model.Slot{}, false
}
