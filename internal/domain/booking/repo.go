package booking

import (
	"context"

	"github.com/google/uuid"
)

// BusyInterval is an occupied time range for a staff member, carrying the
// buffer its appointment type demands around it.
type BusyInterval struct {
	Interval
	BufferMinutes int
	AppointmentID uuid.UUID
}

// ListFilter narrows appointment list reads.
type ListFilter struct {
	CustomerID *uuid.UUID
	StaffID    *uuid.UUID
	DateFrom   string
	DateTo     string
	Status     string
	Limit      int
	Offset     int
}

type Repository interface {
	// BusyIntervals returns the slot-blocking appointments for a staff member
	// on a date. excludeID removes one appointment from the set, used when
	// rescheduling so an appointment never conflicts with itself.
	BusyIntervals(ctx context.Context, staffID uuid.UUID, date string, excludeID *uuid.UUID) ([]BusyInterval, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f ListFilter) ([]*Appointment, int, error)

	// CreateBooked inserts the appointment transactionally together with its
	// outbox event. idemKey, when non-empty, makes the call idempotent: a
	// repeated key returns the originally created appointment. A losing
	// concurrent booking returns ErrConflict.
	CreateBooked(ctx context.Context, a *Appointment, idemKey string) (*Appointment, error)

	// UpdateBooked rewrites the appointment transactionally together with its
	// outbox event, returning ErrConflict when the new time loses a race.
	UpdateBooked(ctx context.Context, a *Appointment) error

	// Cancel soft-cancels. Cancelling an already-cancelled appointment is a
	// no-op success.
	Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (*Appointment, error)

	// HardDelete removes the row permanently.
	HardDelete(ctx context.Context, id uuid.UUID) error

	AddHistory(ctx context.Context, h *History) error
	ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]*History, error)
}
