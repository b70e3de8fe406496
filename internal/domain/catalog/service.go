package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	types    TypeRepository
	settings SettingsRepository
}

func NewService(types TypeRepository, settings SettingsRepository) *Service {
	return &Service{types: types, settings: settings}
}

// -- AppointmentType --

func (s *Service) CreateType(ctx context.Context, t *AppointmentType) error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if t.BufferBeforeMinutes < 0 || t.BufferAfterMinutes < 0 {
		return fmt.Errorf("buffer minutes cannot be negative")
	}
	if t.MaxAdvanceBookingDays > 0 && t.AdvanceBookingDays > t.MaxAdvanceBookingDays {
		return fmt.Errorf("advance_booking_days cannot exceed max_advance_booking_days")
	}
	if t.MaxAdvanceBookingDays == 0 {
		t.MaxAdvanceBookingDays = 90
	}
	t.IsActive = true
	return s.types.Create(ctx, t)
}

func (s *Service) GetType(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	return s.types.GetByID(ctx, id)
}

func (s *Service) UpdateType(ctx context.Context, t *AppointmentType) error {
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	return s.types.Update(ctx, t)
}

// DeleteType deactivates the type. Rows are kept so existing appointments
// still resolve their type details.
func (s *Service) DeleteType(ctx context.Context, id uuid.UUID) error {
	return s.types.Delete(ctx, id)
}

func (s *Service) ListTypes(ctx context.Context, activeOnly bool, limit, offset int) ([]*AppointmentType, int, error) {
	return s.types.List(ctx, activeOnly, limit, offset)
}

// -- BookingSettings --

func (s *Service) GetSettings(ctx context.Context) (*BookingSettings, error) {
	return s.settings.Get(ctx)
}

func (s *Service) SaveSettings(ctx context.Context, bs *BookingSettings) error {
	if bs.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot_duration_minutes must be positive")
	}
	if bs.MinAdvanceHours < 0 {
		return fmt.Errorf("min_advance_hours cannot be negative")
	}
	if bs.BufferBetweenAppointments < 0 {
		return fmt.Errorf("buffer_between_appointments cannot be negative")
	}
	return s.settings.Save(ctx, bs)
}
