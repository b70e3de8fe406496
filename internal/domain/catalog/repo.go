package catalog

import (
	"context"

	"github.com/google/uuid"
)

type TypeRepository interface {
	Create(ctx context.Context, t *AppointmentType) error
	GetByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error)
	Update(ctx context.Context, t *AppointmentType) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*AppointmentType, int, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*BookingSettings, error)
	Save(ctx context.Context, s *BookingSettings) error
}
