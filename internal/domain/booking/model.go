package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Cancelled and no-show appointments do not hold their
// time slot.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// blockingStatuses are the statuses that occupy a slot.
func blocksSlot(status string) bool {
	return status != StatusCancelled && status != StatusNoShow
}

var (
	// ErrConflict means the requested time overlaps another appointment for
	// the same staff member.
	ErrConflict = errors.New("time slot is not available")
	// ErrNotFound means no appointment matched.
	ErrNotFound = errors.New("appointment not found")
	// ErrTypeNotFound and ErrStaffNotFound mark missing catalog references.
	// Handlers map them to 404.
	ErrTypeNotFound  = errors.New("appointment type not found")
	ErrStaffNotFound = errors.New("staff member not found")
)

// InvalidError is caller input the service refused. Handlers map it to 400.
type InvalidError string

func (e InvalidError) Error() string { return string(e) }

func invalidf(format string, a ...interface{}) error {
	return InvalidError(fmt.Sprintf(format, a...))
}

// Appointment maps to the appointments table. Times are stored as full
// timestamps; Date is the business-facing calendar date.
type Appointment struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CustomerID uuid.UUID  `db:"customer_id" json:"customer_id"`
	StaffID    *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	TypeID     uuid.UUID  `db:"appointment_type_id" json:"appointment_type_id"`
	Date       string     `db:"appointment_date" json:"appointment_date"`
	StartAt    time.Time  `db:"start_at" json:"start_at"`
	EndAt      time.Time  `db:"end_at" json:"end_at"`
	Status     string     `db:"status" json:"status"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`

	CustomerConfirmedAt *time.Time `db:"customer_confirmed_at" json:"customer_confirmed_at,omitempty"`
	StartedAt           *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt         *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt         *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy         *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason  *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Joined summaries, populated on list reads.
	CustomerName    *string `db:"-" json:"customer_name,omitempty"`
	CustomerPhone   *string `db:"-" json:"customer_phone,omitempty"`
	StaffName       *string `db:"-" json:"staff_name,omitempty"`
	TypeName        *string `db:"-" json:"appointment_type_name,omitempty"`
	DurationMinutes *int    `db:"-" json:"duration_minutes,omitempty"`
}

// StartTime returns the wall-clock start in HH:MM form.
func (a *Appointment) StartTime() string { return a.StartAt.Format("15:04") }

// EndTime returns the wall-clock end in HH:MM form.
func (a *Appointment) EndTime() string { return a.EndAt.Format("15:04") }

// History maps to the appointment_history table.
type History struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	AppointmentID uuid.UUID       `db:"appointment_id" json:"appointment_id"`
	Action        string          `db:"action" json:"action"`
	Actor         string          `db:"actor" json:"actor"`
	Details       json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Slot is one bookable opening offered to a caller.
type Slot struct {
	StaffID   uuid.UUID `json:"staff_id"`
	StaffName string    `json:"staff_name,omitempty"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// SlotListing is the response shape for the availability listing endpoint.
type SlotListing struct {
	AvailableSlots   []Slot            `json:"available_slots"`
	SlotsByDate      map[string][]Slot `json:"slots_by_date"`
	TotalSlots       int               `json:"total_slots"`
	DatesChecked     []string          `json:"dates_checked"`
	StaffChecked     int               `json:"staff_checked"`
	AppointmentType  interface{}       `json:"appointment_type,omitempty"`
	BusinessSettings interface{}       `json:"business_settings,omitempty"`
}

// SlotCheck is the response shape for single-slot validation. Policy and
// availability rejections are reported here with a 200 status, not an error.
type SlotCheck struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
