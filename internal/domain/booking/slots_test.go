package booking

import (
	"testing"
	"time"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	return Interval{Start: ts(t, start), End: ts(t, end)}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", iv(t, "2025-03-10 09:00", "2025-03-10 09:30"), iv(t, "2025-03-10 10:00", "2025-03-10 10:30"), false},
		{"partial overlap", iv(t, "2025-03-10 10:15", "2025-03-10 10:45"), iv(t, "2025-03-10 10:00", "2025-03-10 10:30"), true},
		{"contained", iv(t, "2025-03-10 10:00", "2025-03-10 11:00"), iv(t, "2025-03-10 10:15", "2025-03-10 10:30"), true},
		{"identical", iv(t, "2025-03-10 10:00", "2025-03-10 10:30"), iv(t, "2025-03-10 10:00", "2025-03-10 10:30"), true},
		{"back to back", iv(t, "2025-03-10 10:30", "2025-03-10 11:00"), iv(t, "2025-03-10 10:00", "2025-03-10 10:30"), false},
		{"back to back reversed", iv(t, "2025-03-10 09:30", "2025-03-10 10:00"), iv(t, "2025-03-10 10:00", "2025-03-10 10:30"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateSlots_FullDay(t *testing.T) {
	now := ts(t, "2025-03-01 12:00")
	slots := GenerateSlots(
		ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 17:00"),
		30*time.Minute, 30*time.Minute, nil, now)

	if len(slots) != 16 {
		t.Fatalf("got %d slots, want 16", len(slots))
	}
	if !slots[0].Start.Equal(ts(t, "2025-03-10 09:00")) {
		t.Errorf("first slot starts %v, want 09:00", slots[0].Start)
	}
	if !slots[15].Start.Equal(ts(t, "2025-03-10 16:30")) {
		t.Errorf("last slot starts %v, want 16:30", slots[15].Start)
	}
	// The 17:00 slot would end at 17:30, past the window.
	for _, s := range slots {
		if s.End.After(ts(t, "2025-03-10 17:00")) {
			t.Errorf("slot %v..%v exceeds the window", s.Start, s.End)
		}
	}
}

func TestGenerateSlots_BusyRemovesExactlyOne(t *testing.T) {
	now := ts(t, "2025-03-01 12:00")
	busy := []Interval{iv(t, "2025-03-10 10:00", "2025-03-10 10:30")}
	slots := GenerateSlots(
		ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 17:00"),
		30*time.Minute, 30*time.Minute, busy, now)

	if len(slots) != 15 {
		t.Fatalf("got %d slots, want 15", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(ts(t, "2025-03-10 10:00")) {
			t.Errorf("10:00 slot should be blocked")
		}
	}
	// Neighbors survive.
	var found0930, found1030 bool
	for _, s := range slots {
		if s.Start.Equal(ts(t, "2025-03-10 09:30")) {
			found0930 = true
		}
		if s.Start.Equal(ts(t, "2025-03-10 10:30")) {
			found1030 = true
		}
	}
	if !found0930 || !found1030 {
		t.Errorf("adjacent slots missing: 09:30=%v 10:30=%v", found0930, found1030)
	}
}

func TestGenerateSlots_SkipsPast(t *testing.T) {
	now := ts(t, "2025-03-10 12:10")
	slots := GenerateSlots(
		ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 17:00"),
		30*time.Minute, 30*time.Minute, nil, now)

	for _, s := range slots {
		if s.Start.Before(now) {
			t.Errorf("slot %v starts in the past", s.Start)
		}
	}
	if len(slots) != 9 {
		// 12:30 through 16:30.
		t.Errorf("got %d slots, want 9", len(slots))
	}
}

func TestGenerateSlots_BufferedBusy(t *testing.T) {
	now := ts(t, "2025-03-01 12:00")
	// A 10:00-10:30 booking padded by 15 minutes blocks 09:45-10:45,
	// which knocks out the 09:30, 10:00 and 10:30 slots.
	busy := []Interval{iv(t, "2025-03-10 10:00", "2025-03-10 10:30").Pad(15 * time.Minute)}
	slots := GenerateSlots(
		ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 17:00"),
		30*time.Minute, 30*time.Minute, busy, now)

	if len(slots) != 13 {
		t.Fatalf("got %d slots, want 13", len(slots))
	}
	for _, s := range slots {
		for _, blocked := range []string{"2025-03-10 09:30", "2025-03-10 10:00", "2025-03-10 10:30"} {
			if s.Start.Equal(ts(t, blocked)) {
				t.Errorf("slot %s should be blocked by the buffer", blocked)
			}
		}
	}
}

func TestGenerateSlots_StepSmallerThanDuration(t *testing.T) {
	now := ts(t, "2025-03-01 12:00")
	// 60-minute appointments offered on a 30-minute grid.
	slots := GenerateSlots(
		ts(t, "2025-03-10 09:00"), ts(t, "2025-03-10 11:00"),
		60*time.Minute, 30*time.Minute, nil, now)

	if len(slots) != 3 {
		// 09:00, 09:30, 10:00.
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	if !slots[2].End.Equal(ts(t, "2025-03-10 11:00")) {
		t.Errorf("last slot ends %v, want 11:00", slots[2].End)
	}
}

func TestMergeIntervals(t *testing.T) {
	in := []Interval{
		iv(t, "2025-03-10 11:00", "2025-03-10 12:00"),
		iv(t, "2025-03-10 09:00", "2025-03-10 10:00"),
		iv(t, "2025-03-10 09:30", "2025-03-10 10:30"),
	}
	out := MergeIntervals(in)
	if len(out) != 2 {
		t.Fatalf("got %d intervals, want 2", len(out))
	}
	if !out[0].Start.Equal(ts(t, "2025-03-10 09:00")) || !out[0].End.Equal(ts(t, "2025-03-10 10:30")) {
		t.Errorf("merged interval = %v..%v, want 09:00..10:30", out[0].Start, out[0].End)
	}
}
