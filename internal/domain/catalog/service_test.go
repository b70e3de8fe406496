package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

type mockTypeRepo struct {
	types map[uuid.UUID]*AppointmentType
}

func newMockTypeRepo() *mockTypeRepo {
	return &mockTypeRepo{types: make(map[uuid.UUID]*AppointmentType)}
}

func (m *mockTypeRepo) Create(_ context.Context, t *AppointmentType) error {
	t.ID = uuid.New()
	m.types[t.ID] = t
	return nil
}

func (m *mockTypeRepo) GetByID(_ context.Context, id uuid.UUID) (*AppointmentType, error) {
	t, ok := m.types[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return t, nil
}

func (m *mockTypeRepo) Update(_ context.Context, t *AppointmentType) error {
	m.types[t.ID] = t
	return nil
}

func (m *mockTypeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if t, ok := m.types[id]; ok {
		t.IsActive = false
	}
	return nil
}

func (m *mockTypeRepo) List(_ context.Context, activeOnly bool, _, _ int) ([]*AppointmentType, int, error) {
	var out []*AppointmentType
	for _, t := range m.types {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

type mockSettingsRepo struct {
	saved *BookingSettings
}

func (m *mockSettingsRepo) Get(_ context.Context) (*BookingSettings, error) {
	if m.saved == nil {
		s := DefaultBookingSettings()
		return &s, nil
	}
	return m.saved, nil
}

func (m *mockSettingsRepo) Save(_ context.Context, s *BookingSettings) error {
	m.saved = s
	return nil
}

func TestCreateType_Validation(t *testing.T) {
	svc := NewService(newMockTypeRepo(), &mockSettingsRepo{})

	tests := []struct {
		name string
		in   AppointmentType
	}{
		{"missing name", AppointmentType{DurationMinutes: 30}},
		{"zero duration", AppointmentType{Name: "Consult"}},
		{"negative buffer", AppointmentType{Name: "Consult", DurationMinutes: 30, BufferBeforeMinutes: -5}},
		{"advance beyond max", AppointmentType{Name: "Consult", DurationMinutes: 30, AdvanceBookingDays: 60, MaxAdvanceBookingDays: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			if err := svc.CreateType(context.Background(), &in); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestCreateType_Defaults(t *testing.T) {
	repo := newMockTypeRepo()
	svc := NewService(repo, &mockSettingsRepo{})

	in := &AppointmentType{Name: "Consult", DurationMinutes: 30}
	if err := svc.CreateType(context.Background(), in); err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	stored := repo.types[in.ID]
	if stored.MaxAdvanceBookingDays != 90 {
		t.Errorf("MaxAdvanceBookingDays = %d, want default 90", stored.MaxAdvanceBookingDays)
	}
	if !stored.IsActive {
		t.Errorf("new type should be active")
	}
}

func TestDeleteType_Deactivates(t *testing.T) {
	repo := newMockTypeRepo()
	svc := NewService(repo, &mockSettingsRepo{})

	in := &AppointmentType{Name: "Consult", DurationMinutes: 30}
	svc.CreateType(context.Background(), in)

	if err := svc.DeleteType(context.Background(), in.ID); err != nil {
		t.Fatalf("DeleteType: %v", err)
	}
	if repo.types[in.ID] == nil {
		t.Fatalf("row should survive a delete")
	}
	if repo.types[in.ID].IsActive {
		t.Errorf("deleted type should be inactive")
	}
}

func TestBufferMinutes_TakesLarger(t *testing.T) {
	at := AppointmentType{BufferBeforeMinutes: 10, BufferAfterMinutes: 20}
	if got := at.BufferMinutes(); got != 20 {
		t.Errorf("BufferMinutes = %d, want 20", got)
	}
	at = AppointmentType{BufferBeforeMinutes: 30, BufferAfterMinutes: 5}
	if got := at.BufferMinutes(); got != 30 {
		t.Errorf("BufferMinutes = %d, want 30", got)
	}
}

func TestSettings_DefaultsWhenUnsaved(t *testing.T) {
	svc := NewService(newMockTypeRepo(), &mockSettingsRepo{})

	got, err := svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	want := DefaultBookingSettings()
	if got.MinAdvanceHours != want.MinAdvanceHours ||
		got.SlotDurationMinutes != want.SlotDurationMinutes ||
		got.BufferBetweenAppointments != want.BufferBetweenAppointments ||
		got.SameDayBookingEnabled != want.SameDayBookingEnabled {
		t.Errorf("got %+v, want defaults %+v", got, want)
	}
}

func TestSaveSettings_Validation(t *testing.T) {
	svc := NewService(newMockTypeRepo(), &mockSettingsRepo{})

	bad := []BookingSettings{
		{SlotDurationMinutes: 0},
		{SlotDurationMinutes: 30, MinAdvanceHours: -1},
		{SlotDurationMinutes: 30, BufferBetweenAppointments: -1},
	}
	for _, bs := range bad {
		in := bs
		if err := svc.SaveSettings(context.Background(), &in); err == nil {
			t.Errorf("expected validation error for %+v", bs)
		}
	}

	ok := BookingSettings{SlotDurationMinutes: 15, MinAdvanceHours: 2, SameDayBookingEnabled: true}
	if err := svc.SaveSettings(context.Background(), &ok); err != nil {
		t.Errorf("SaveSettings: %v", err)
	}
}
