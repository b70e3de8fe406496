package catalog

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentType maps to the appointment_types table. Duration and buffers
// drive slot generation; the advance-booking fields drive the policy filter.
type AppointmentType struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	Name                  string    `db:"name" json:"name"`
	Description           *string   `db:"description" json:"description,omitempty"`
	DurationMinutes       int       `db:"duration_minutes" json:"duration_minutes"`
	BufferBeforeMinutes   int       `db:"buffer_before_minutes" json:"buffer_before_minutes"`
	BufferAfterMinutes    int       `db:"buffer_after_minutes" json:"buffer_after_minutes"`
	PriceCents            *int      `db:"price_cents" json:"price_cents,omitempty"`
	AdvanceBookingDays    int       `db:"advance_booking_days" json:"advance_booking_days"`
	MaxAdvanceBookingDays int       `db:"max_advance_booking_days" json:"max_advance_booking_days"`
	SameDayBooking        bool      `db:"same_day_booking" json:"same_day_booking"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// BufferMinutes returns the larger of the two buffers. A single symmetric
// buffer is applied on both sides of a booking when testing for conflicts.
func (t *AppointmentType) BufferMinutes() int {
	if t.BufferBeforeMinutes > t.BufferAfterMinutes {
		return t.BufferBeforeMinutes
	}
	return t.BufferAfterMinutes
}

// BookingSettings is the per-business singleton controlling slot generation
// defaults and the same-day booking switch.
type BookingSettings struct {
	MinAdvanceHours           int       `db:"min_advance_hours" json:"min_advance_hours"`
	SlotDurationMinutes       int       `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	BufferBetweenAppointments int       `db:"buffer_between_appointments" json:"buffer_between_appointments"`
	SameDayBookingEnabled     bool      `db:"same_day_booking_enabled" json:"same_day_booking_enabled"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultBookingSettings matches the values applied when a business has not
// saved settings yet.
func DefaultBookingSettings() BookingSettings {
	return BookingSettings{
		MinAdvanceHours:           24,
		SlotDurationMinutes:       30,
		BufferBetweenAppointments: 15,
		SameDayBookingEnabled:     true,
	}
}
