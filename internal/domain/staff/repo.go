package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Staff, int, error)
}

type AvailabilityRepository interface {
	Upsert(ctx context.Context, a *Availability) error
	ListByStaff(ctx context.Context, staffID uuid.UUID, dateFrom, dateTo string) ([]*Availability, error)
	GetForDate(ctx context.Context, staffID uuid.UUID, date string) (*Availability, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// OverrideDates returns the set of dates with hand-edited rows for the
	// staff member, which the office-hours sync must leave alone.
	OverrideDates(ctx context.Context, staffID uuid.UUID, dateFrom, dateTo string) (map[string]bool, error)
}

type OfficeHoursRepository interface {
	GetWeek(ctx context.Context) ([]*OfficeHours, error)
	SaveWeek(ctx context.Context, week []*OfficeHours) error
}
