package booking

import (
	"fmt"
	"time"
)

// Policy collects the advance-booking rules for one appointment type plus the
// business-level settings that apply across types.
type Policy struct {
	// Per appointment type.
	AdvanceBookingDays    int
	MaxAdvanceBookingDays int
	SameDayBooking        bool

	// Business wide.
	MinAdvanceHours       int
	SameDayBookingEnabled bool
}

// daysBetween returns the whole-day difference between now's calendar date
// and the slot's calendar date. A slot later today is 0 days out.
func daysBetween(now, slot time.Time) int {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	slotDate := time.Date(slot.Year(), slot.Month(), slot.Day(), 0, 0, 0, 0, time.UTC)
	return int(slotDate.Sub(nowDate) / (24 * time.Hour))
}

// Check applies the booking policy to a candidate slot start. A failed check
// is a policy answer for the caller, not an error: the reason explains why
// the slot cannot be taken.
func (p Policy) Check(now, slotStart time.Time) (bool, string) {
	if slotStart.Before(now) {
		return false, "time slot is in the past"
	}

	days := daysBetween(now, slotStart)

	if days == 0 {
		if !p.SameDayBooking {
			return false, "same-day booking is not available for this service"
		}
		if !p.SameDayBookingEnabled {
			return false, "same-day booking is currently disabled"
		}
	}

	if !p.SameDayBookingEnabled && p.MinAdvanceHours > 0 {
		if slotStart.Before(now.Add(time.Duration(p.MinAdvanceHours) * time.Hour)) {
			return false, fmt.Sprintf("bookings require at least %d hours notice", p.MinAdvanceHours)
		}
	}

	if days < p.AdvanceBookingDays {
		return false, fmt.Sprintf("this service must be booked at least %d days in advance", p.AdvanceBookingDays)
	}

	if p.MaxAdvanceBookingDays > 0 && days > p.MaxAdvanceBookingDays {
		return false, fmt.Sprintf("this service cannot be booked more than %d days in advance", p.MaxAdvanceBookingDays)
	}

	return true, ""
}
