package booking

import (
	"strings"
	"testing"
)

func TestPolicy_AdvanceDaysBoundary(t *testing.T) {
	// advance_booking_days = 2: exactly 2 calendar days out is allowed,
	// 1 day out is not, regardless of the hour.
	p := Policy{AdvanceBookingDays: 2, SameDayBooking: true, SameDayBookingEnabled: true}
	now := ts(t, "2025-03-10 15:00")

	if ok, _ := p.Check(now, ts(t, "2025-03-12 09:00")); !ok {
		t.Errorf("slot exactly 2 days out should pass")
	}
	ok, reason := p.Check(now, ts(t, "2025-03-11 09:00"))
	if ok {
		t.Errorf("slot 1 day out should fail")
	}
	if !strings.Contains(reason, "2 days in advance") {
		t.Errorf("reason = %q, want mention of 2 days in advance", reason)
	}
}

func TestPolicy_MaxAdvanceDays(t *testing.T) {
	p := Policy{MaxAdvanceBookingDays: 30, SameDayBooking: true, SameDayBookingEnabled: true}
	now := ts(t, "2025-03-10 09:00")

	if ok, _ := p.Check(now, ts(t, "2025-04-09 09:00")); !ok {
		t.Errorf("slot exactly 30 days out should pass")
	}
	ok, reason := p.Check(now, ts(t, "2025-04-10 09:00"))
	if ok {
		t.Errorf("slot 31 days out should fail")
	}
	if !strings.Contains(reason, "more than 30 days") {
		t.Errorf("reason = %q", reason)
	}
}

func TestPolicy_SameDay(t *testing.T) {
	now := ts(t, "2025-03-10 09:00")
	slot := ts(t, "2025-03-10 15:00")

	t.Run("type disallows same day", func(t *testing.T) {
		p := Policy{SameDayBooking: false, SameDayBookingEnabled: true}
		ok, reason := p.Check(now, slot)
		if ok {
			t.Fatalf("expected rejection")
		}
		if !strings.Contains(reason, "not available for this service") {
			t.Errorf("reason = %q", reason)
		}
	})

	t.Run("business disables same day", func(t *testing.T) {
		p := Policy{SameDayBooking: true, SameDayBookingEnabled: false}
		ok, reason := p.Check(now, slot)
		if ok {
			t.Fatalf("expected rejection")
		}
		if !strings.Contains(reason, "currently disabled") {
			t.Errorf("reason = %q", reason)
		}
	})

	t.Run("allowed when both permit", func(t *testing.T) {
		p := Policy{SameDayBooking: true, SameDayBookingEnabled: true}
		if ok, _ := p.Check(now, slot); !ok {
			t.Errorf("same-day slot should pass")
		}
	})
}

func TestPolicy_MinAdvanceHours(t *testing.T) {
	// Minimum notice applies only when same-day booking is disabled
	// business-wide.
	p := Policy{SameDayBooking: true, SameDayBookingEnabled: false, MinAdvanceHours: 24}
	now := ts(t, "2025-03-10 15:00")

	ok, reason := p.Check(now, ts(t, "2025-03-11 10:00"))
	if ok {
		t.Fatalf("slot 19 hours out should fail the 24 hour minimum")
	}
	if !strings.Contains(reason, "24 hours notice") {
		t.Errorf("reason = %q", reason)
	}

	if ok, _ := p.Check(now, ts(t, "2025-03-11 16:00")); !ok {
		t.Errorf("slot 25 hours out should pass")
	}
}

func TestPolicy_PastSlot(t *testing.T) {
	p := Policy{SameDayBooking: true, SameDayBookingEnabled: true}
	now := ts(t, "2025-03-10 12:00")

	ok, reason := p.Check(now, ts(t, "2025-03-10 11:00"))
	if ok {
		t.Fatalf("past slot should fail")
	}
	if reason != "time slot is in the past" {
		t.Errorf("reason = %q", reason)
	}
}

func TestDaysBetween_DateBoundaries(t *testing.T) {
	// 23:00 today to 01:00 tomorrow is one calendar day even though only
	// two hours apart.
	got := daysBetween(ts(t, "2025-03-10 23:00"), ts(t, "2025-03-11 01:00"))
	if got != 1 {
		t.Errorf("daysBetween = %d, want 1", got)
	}
	if got := daysBetween(ts(t, "2025-03-10 00:00"), ts(t, "2025-03-10 23:59")); got != 0 {
		t.Errorf("same day = %d, want 0", got)
	}
}
