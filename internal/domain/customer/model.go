package customer

import (
	"time"

	"github.com/google/uuid"
)

// Customer maps to the customers table. The appointment counters are
// denormalized and maintained asynchronously from booking events.
type Customer struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Name                  string     `db:"name" json:"name"`
	Phone                 *string    `db:"phone" json:"phone,omitempty"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	Notes                 *string    `db:"notes" json:"notes,omitempty"`
	TotalAppointments     int        `db:"total_appointments" json:"total_appointments"`
	CompletedAppointments int        `db:"completed_appointments" json:"completed_appointments"`
	CancelledAppointments int        `db:"cancelled_appointments" json:"cancelled_appointments"`
	NoShowAppointments    int        `db:"no_show_appointments" json:"no_show_appointments"`
	LastAppointmentAt     *time.Time `db:"last_appointment_at" json:"last_appointment_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}
