package staff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type Service struct {
	staff        Repository
	availability AvailabilityRepository
	officeHours  OfficeHoursRepository
}

func NewService(staff Repository, availability AvailabilityRepository, officeHours OfficeHoursRepository) *Service {
	return &Service{staff: staff, availability: availability, officeHours: officeHours}
}

// -- Staff --

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	if st.Name == "" {
		return fmt.Errorf("name is required")
	}
	if st.Role == "" {
		st.Role = "staff"
	}
	st.IsActive = true
	return s.staff.Create(ctx, st)
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.staff.GetByID(ctx, id)
}

func (s *Service) UpdateStaff(ctx context.Context, st *Staff) error {
	if st.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.staff.Update(ctx, st)
}

func (s *Service) DeactivateStaff(ctx context.Context, id uuid.UUID) error {
	return s.staff.Delete(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context, activeOnly bool, limit, offset int) ([]*Staff, int, error) {
	return s.staff.List(ctx, activeOnly, limit, offset)
}

// -- Availability --

func (s *Service) SetAvailability(ctx context.Context, a *Availability) error {
	if a.StaffID == uuid.Nil {
		return fmt.Errorf("staff_id is required")
	}
	if _, err := time.Parse(dateLayout, a.Date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", a.Date)
	}
	if err := validateTimeRange(a.StartTime, a.EndTime); err != nil {
		return err
	}
	// A manual write is always an override so the next sync leaves it alone.
	a.IsOverride = true
	return s.availability.Upsert(ctx, a)
}

func (s *Service) ListAvailability(ctx context.Context, staffID uuid.UUID, dateFrom, dateTo string) ([]*Availability, error) {
	if dateFrom == "" || dateTo == "" {
		return nil, fmt.Errorf("date_from and date_to are required")
	}
	return s.availability.ListByStaff(ctx, staffID, dateFrom, dateTo)
}

func (s *Service) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	return s.availability.Delete(ctx, id)
}

// -- Office hours --

func (s *Service) GetOfficeHours(ctx context.Context) ([]*OfficeHours, error) {
	return s.officeHours.GetWeek(ctx)
}

func (s *Service) SaveOfficeHours(ctx context.Context, week []*OfficeHours) error {
	seen := make(map[int]bool)
	for _, oh := range week {
		if oh.DayOfWeek < 0 || oh.DayOfWeek > 6 {
			return fmt.Errorf("day_of_week must be 0-6, got %d", oh.DayOfWeek)
		}
		if seen[oh.DayOfWeek] {
			return fmt.Errorf("duplicate day_of_week %d", oh.DayOfWeek)
		}
		seen[oh.DayOfWeek] = true
		if oh.IsOpen {
			if err := validateTimeRange(oh.OpenTime, oh.CloseTime); err != nil {
				return err
			}
		}
	}
	return s.officeHours.SaveWeek(ctx, week)
}

// SyncAvailability projects the weekly office-hours template into per-date
// availability rows for every active staff member, from today through
// horizonDays out. Hand-edited rows (is_override) are skipped. Each staff
// member syncs independently so one failure does not abort the rest.
func (s *Service) SyncAvailability(ctx context.Context, now time.Time, horizonDays int) ([]SyncResult, error) {
	week, err := s.officeHours.GetWeek(ctx)
	if err != nil {
		return nil, fmt.Errorf("load office hours: %w", err)
	}
	if len(week) == 0 {
		return nil, fmt.Errorf("no office hours configured")
	}
	byDay := make(map[int]*OfficeHours, len(week))
	for _, oh := range week {
		byDay[oh.DayOfWeek] = oh
	}

	members, _, err := s.staff.List(ctx, true, pagingAll, 0)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	start := now.Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, horizonDays)
	dateFrom := start.Format(dateLayout)
	dateTo := end.Format(dateLayout)

	var results []SyncResult
	for _, member := range members {
		res := SyncResult{StaffID: member.ID, StaffName: member.Name}

		overrides, err := s.availability.OverrideDates(ctx, member.ID, dateFrom, dateTo)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			date := d.Format(dateLayout)
			if overrides[date] {
				res.DaysSkipped++
				continue
			}
			oh, ok := byDay[int(d.Weekday())]
			if !ok {
				continue
			}
			row := &Availability{
				StaffID:     member.ID,
				Date:        date,
				StartTime:   oh.OpenTime,
				EndTime:     oh.CloseTime,
				IsAvailable: oh.IsOpen,
			}
			if !oh.IsOpen {
				row.StartTime = "00:00"
				row.EndTime = "00:00"
			}
			if err := s.availability.Upsert(ctx, row); err != nil {
				res.Error = err.Error()
				break
			}
			res.DaysWritten++
		}
		results = append(results, res)
	}
	return results, nil
}

// pagingAll is a limit large enough to cover any realistic roster.
const pagingAll = 1000

func validateTimeRange(start, end string) error {
	st, err := time.Parse("15:04", start)
	if err != nil {
		return fmt.Errorf("invalid start time %q, expected HH:MM", start)
	}
	en, err := time.Parse("15:04", end)
	if err != nil {
		return fmt.Errorf("invalid end time %q, expected HH:MM", end)
	}
	if !st.Before(en) {
		return fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return nil
}
