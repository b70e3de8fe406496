package booking

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Back-to-back
// intervals (one ending exactly when the other starts) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Pad widens the interval by d on both sides. Used to apply service buffers
// to busy intervals before conflict testing.
func (iv Interval) Pad(d time.Duration) Interval {
	if d <= 0 {
		return iv
	}
	return Interval{Start: iv.Start.Add(-d), End: iv.End.Add(d)}
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// GenerateSlots walks the availability window in step increments and returns
// every candidate start whose service interval fits inside the window, is not
// in the past, and clears the busy set.
func GenerateSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []Interval {
	if duration <= 0 || step <= 0 || !windowStart.Before(windowEnd) {
		return nil
	}

	var slots []Interval
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		candidate := Interval{Start: t, End: t.Add(duration)}
		if overlapsAny(candidate, busy) {
			continue
		}
		slots = append(slots, candidate)
	}
	return slots
}

// MergeIntervals sorts and coalesces overlapping or touching intervals.
// Conflict testing stays correct without it, but merged sets keep the
// per-slot scan short on dense calendars.
func MergeIntervals(in []Interval) []Interval {
	if len(in) <= 1 {
		return in
	}
	sorted := make([]Interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := sorted[:1]
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
