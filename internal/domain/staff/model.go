package staff

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAvailabilityNotFound means no availability row exists for the staff
// member and date. Callers treat the day as closed.
var ErrAvailabilityNotFound = errors.New("availability not found")

// Staff maps to the staff table.
type Staff struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Role      string    `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Availability maps to the staff_availability table: one row per staff member
// per calendar date. Rows with IsOverride set were edited by hand and are
// never touched by the office-hours sync.
type Availability struct {
	ID          uuid.UUID `db:"id" json:"id"`
	StaffID     uuid.UUID `db:"staff_id" json:"staff_id"`
	Date        string    `db:"date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	IsOverride  bool      `db:"is_override" json:"is_override"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// OfficeHours maps to the office_hours table: the weekly template.
// DayOfWeek follows time.Weekday (0 = Sunday).
type OfficeHours struct {
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	OpenTime  string `db:"open_time" json:"open_time"`
	CloseTime string `db:"close_time" json:"close_time"`
	IsOpen    bool   `db:"is_open" json:"is_open"`
}

// SyncResult reports the outcome of projecting office hours onto one staff
// member's availability rows.
type SyncResult struct {
	StaffID     uuid.UUID `json:"staff_id"`
	StaffName   string    `json:"staff_name"`
	DaysWritten int       `json:"days_written"`
	DaysSkipped int       `json:"days_skipped"`
	Error       string    `json:"error,omitempty"`
}
