package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/frontdesk/frontdesk/internal/domain/catalog"
	"github.com/frontdesk/frontdesk/internal/domain/staff"
	"github.com/frontdesk/frontdesk/internal/platform/db"
)

// Service owns slot computation and appointment writes.
type Service struct {
	repo     Repository
	types    catalog.TypeRepository
	settings catalog.SettingsRepository
	staff    staff.Repository
	avail    staff.AvailabilityRepository
	hours    staff.OfficeHoursRepository
	logger   zerolog.Logger

	nowFn func() time.Time
}

func NewService(repo Repository, types catalog.TypeRepository, settings catalog.SettingsRepository,
	staffRepo staff.Repository, avail staff.AvailabilityRepository,
	hours staff.OfficeHoursRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		types:    types,
		settings: settings,
		staff:    staffRepo,
		avail:    avail,
		hours:    hours,
		logger:   logger.With().Str("component", "booking").Logger(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// SlotRequest asks for open slots for one appointment type across a set of
// dates, optionally pinned to one staff member.
type SlotRequest struct {
	TypeID  uuid.UUID
	StaffID *uuid.UUID
	Dates   []string
}

// CheckRequest asks whether one specific interval can be booked. An empty
// EndTime means the appointment type's duration from StartTime.
type CheckRequest struct {
	TypeID    uuid.UUID
	StaffID   *uuid.UUID
	Date      string
	StartTime string
	EndTime   string
	// ExcludeID removes one appointment from conflict checks, used when
	// rescheduling so an appointment does not conflict with itself.
	ExcludeID *uuid.UUID
}

// BookRequest creates an appointment. A nil StaffID means any available
// staff member; the first free one is assigned.
type BookRequest struct {
	CustomerID uuid.UUID
	TypeID     uuid.UUID
	StaffID    *uuid.UUID
	Date       string
	StartTime  string
	Notes      *string
}

// UpdateRequest reschedules or transitions an appointment. Nil fields are
// left unchanged.
type UpdateRequest struct {
	StaffID   *uuid.UUID
	TypeID    *uuid.UUID
	Date      *string
	StartTime *string
	Status    *string
	Notes     *string
}

// loadContext is the per-request bundle of catalog data the slot math needs.
type loadContext struct {
	apptType *catalog.AppointmentType
	settings *catalog.BookingSettings
	staff    []*staff.Staff
	hours    map[int]*staff.OfficeHours
}

// load fetches the appointment type, booking settings, candidate staff and
// the office-hours week concurrently. The four reads are independent.
func (s *Service) load(ctx context.Context, typeID uuid.UUID, staffID *uuid.UUID) (*loadContext, error) {
	lc := &loadContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.types.GetByID(gctx, typeID)
		if err != nil {
			if db.IsNotFound(err) {
				return ErrTypeNotFound
			}
			return fmt.Errorf("appointment type: %w", err)
		}
		if !t.IsActive {
			return invalidf("appointment type %s is not active", t.Name)
		}
		lc.apptType = t
		return nil
	})
	g.Go(func() error {
		cfg, err := s.settings.Get(gctx)
		if err != nil {
			return fmt.Errorf("booking settings: %w", err)
		}
		lc.settings = cfg
		return nil
	})
	g.Go(func() error {
		week, err := s.hours.GetWeek(gctx)
		if err != nil {
			return fmt.Errorf("office hours: %w", err)
		}
		lc.hours = make(map[int]*staff.OfficeHours, len(week))
		for _, d := range week {
			lc.hours[d.DayOfWeek] = d
		}
		return nil
	})
	g.Go(func() error {
		if staffID != nil {
			m, err := s.staff.GetByID(gctx, *staffID)
			if err != nil {
				if db.IsNotFound(err) {
					return ErrStaffNotFound
				}
				return fmt.Errorf("staff: %w", err)
			}
			if !m.IsActive {
				return invalidf("staff member %s is not active", m.Name)
			}
			lc.staff = []*staff.Staff{m}
			return nil
		}
		all, _, err := s.staff.List(gctx, true, 500, 0)
		if err != nil {
			return fmt.Errorf("staff: %w", err)
		}
		lc.staff = all
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lc, nil
}

func (lc *loadContext) policy() Policy {
	return Policy{
		AdvanceBookingDays:    lc.apptType.AdvanceBookingDays,
		MaxAdvanceBookingDays: lc.apptType.MaxAdvanceBookingDays,
		SameDayBooking:        lc.apptType.SameDayBooking,
		MinAdvanceHours:       lc.settings.MinAdvanceHours,
		SameDayBookingEnabled: lc.settings.SameDayBookingEnabled,
	}
}

// bufferMinutes is the symmetric gap applied around existing appointments
// when looking for openings.
func (lc *loadContext) bufferMinutes() int {
	b := lc.apptType.BufferMinutes()
	if lc.settings.BufferBetweenAppointments > b {
		b = lc.settings.BufferBetweenAppointments
	}
	return b
}

func (lc *loadContext) step() time.Duration {
	if lc.settings.SlotDurationMinutes > 0 {
		return time.Duration(lc.settings.SlotDurationMinutes) * time.Minute
	}
	return time.Duration(lc.apptType.DurationMinutes) * time.Minute
}

// ListSlots computes every open slot for the request. Staff members with no
// availability row for a date contribute nothing for that date.
func (s *Service) ListSlots(ctx context.Context, req SlotRequest) (*SlotListing, error) {
	if len(req.Dates) == 0 {
		return nil, invalidf("at least one date is required")
	}
	lc, err := s.load(ctx, req.TypeID, req.StaffID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	pol := lc.policy()
	duration := time.Duration(lc.apptType.DurationMinutes) * time.Minute

	listing := &SlotListing{
		SlotsByDate:      map[string][]Slot{},
		DatesChecked:     req.Dates,
		StaffChecked:     len(lc.staff),
		AppointmentType:  lc.apptType,
		BusinessSettings: lc.settings,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, date := range req.Dates {
		for _, member := range lc.staff {
			date, member := date, member
			g.Go(func() error {
				slots, err := s.staffSlots(gctx, lc, member, date, duration, nil, now)
				if err != nil {
					return err
				}
				var kept []Slot
				for _, sl := range slots {
					start, err := combine(sl.Date, sl.StartTime)
					if err != nil {
						return err
					}
					if ok, _ := pol.Check(now, start); ok {
						kept = append(kept, sl)
					}
				}
				if len(kept) > 0 {
					mu.Lock()
					listing.SlotsByDate[date] = append(listing.SlotsByDate[date], kept...)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, date := range req.Dates {
		slots := listing.SlotsByDate[date]
		sort.Slice(slots, func(i, j int) bool {
			if slots[i].StartTime != slots[j].StartTime {
				return slots[i].StartTime < slots[j].StartTime
			}
			return slots[i].StaffName < slots[j].StaffName
		})
		listing.SlotsByDate[date] = slots
		listing.AvailableSlots = append(listing.AvailableSlots, slots...)
	}
	listing.TotalSlots = len(listing.AvailableSlots)
	return listing, nil
}

// workingWindow resolves the hours a staff member works on a date. A
// hand-edited availability row wins; without one the office-hours template
// for that weekday applies. A closed template day or an is_available=false
// row means no window.
func (s *Service) workingWindow(ctx context.Context, lc *loadContext, staffID uuid.UUID, date string) (Interval, bool, error) {
	var startHHMM, endHHMM string

	av, err := s.avail.GetForDate(ctx, staffID, date)
	switch {
	case err == nil:
		if !av.IsAvailable {
			return Interval{}, false, nil
		}
		startHHMM, endHHMM = av.StartTime, av.EndTime
	case err == staff.ErrAvailabilityNotFound:
		day, perr := time.Parse("2006-01-02", date)
		if perr != nil {
			return Interval{}, false, invalidf("invalid date: %s", date)
		}
		oh := lc.hours[int(day.Weekday())]
		if oh == nil || !oh.IsOpen {
			return Interval{}, false, nil
		}
		startHHMM, endHHMM = oh.OpenTime, oh.CloseTime
	default:
		return Interval{}, false, err
	}

	start, err := combine(date, startHHMM)
	if err != nil {
		return Interval{}, false, err
	}
	end, err := combine(date, endHHMM)
	if err != nil {
		return Interval{}, false, err
	}
	if !start.Before(end) {
		return Interval{}, false, nil
	}
	return Interval{Start: start, End: end}, true, nil
}

// busyFor returns the occupied intervals for a staff member on a date, each
// padded by the larger of its own buffer and the requested type's buffer.
// The raw rows come back too so callers can name the colliding appointment.
func (s *Service) busyFor(ctx context.Context, lc *loadContext, staffID uuid.UUID,
	date string, excludeID *uuid.UUID) ([]Interval, []BusyInterval, error) {

	rows, err := s.repo.BusyIntervals(ctx, staffID, date, excludeID)
	if err != nil {
		return nil, nil, err
	}
	reqBuffer := lc.bufferMinutes()
	padded := make([]Interval, 0, len(rows))
	for _, b := range rows {
		pad := b.BufferMinutes
		if reqBuffer > pad {
			pad = reqBuffer
		}
		padded = append(padded, b.Interval.Pad(time.Duration(pad)*time.Minute))
	}
	return padded, rows, nil
}

// staffSlots computes the open slots for one staff member on one date,
// before the booking policy filter is applied.
func (s *Service) staffSlots(ctx context.Context, lc *loadContext, member *staff.Staff,
	date string, duration time.Duration, excludeID *uuid.UUID, now time.Time) ([]Slot, error) {

	window, open, err := s.workingWindow(ctx, lc, member.ID, date)
	if err != nil || !open {
		return nil, err
	}

	busy, _, err := s.busyFor(ctx, lc, member.ID, date, excludeID)
	if err != nil {
		return nil, err
	}

	free := GenerateSlots(window.Start, window.End, duration, lc.step(), busy, now)
	slots := make([]Slot, 0, len(free))
	for _, iv := range free {
		slots = append(slots, Slot{
			StaffID:   member.ID,
			StaffName: member.Name,
			Date:      date,
			StartTime: iv.Start.Format("15:04"),
			EndTime:   iv.End.Format("15:04"),
		})
	}
	return slots, nil
}

// CheckSlot validates one candidate slot. Rejections come back in the
// result, not as an error, so callers can relay the reason verbatim.
func (s *Service) CheckSlot(ctx context.Context, req CheckRequest) (*SlotCheck, error) {
	lc, err := s.load(ctx, req.TypeID, req.StaffID)
	if err != nil {
		return nil, err
	}
	check, _, err := s.checkSlot(ctx, lc, req)
	return check, err
}

// checkSlot validates the exact requested interval: it must sit inside a
// working window and clear the padded busy set. It is not required to start
// on a slot-grid boundary. Returns the verdict plus the staff member the
// interval landed on, which Book uses for auto-assignment.
func (s *Service) checkSlot(ctx context.Context, lc *loadContext, req CheckRequest) (*SlotCheck, *staff.Staff, error) {
	start, err := combine(req.Date, req.StartTime)
	if err != nil {
		return nil, nil, err
	}
	end := start.Add(time.Duration(lc.apptType.DurationMinutes) * time.Minute)
	if req.EndTime != "" {
		end, err = combine(req.Date, req.EndTime)
		if err != nil {
			return nil, nil, err
		}
		if !start.Before(end) {
			return nil, nil, invalidf("end_time must be after start_time")
		}
	}
	want := Interval{Start: start, End: end}
	now := s.nowFn()

	if ok, reason := lc.policy().Check(now, start); !ok {
		return &SlotCheck{Available: false, Reason: reason}, nil, nil
	}
	if len(lc.staff) == 0 {
		return &SlotCheck{Available: false, Reason: "no staff members are available"}, nil, nil
	}

	anyWorking := false
	var colliding *Interval
	for _, member := range lc.staff {
		window, open, err := s.workingWindow(ctx, lc, member.ID, req.Date)
		if err != nil {
			return nil, nil, err
		}
		if !open {
			continue
		}
		anyWorking = true
		if want.Start.Before(window.Start) || want.End.After(window.End) {
			continue
		}

		padded, rows, err := s.busyFor(ctx, lc, member.ID, req.Date, req.ExcludeID)
		if err != nil {
			return nil, nil, err
		}
		taken := false
		for i, b := range padded {
			if b.Overlaps(want) {
				taken = true
				if colliding == nil {
					iv := rows[i].Interval
					colliding = &iv
				}
				break
			}
		}
		if !taken {
			return &SlotCheck{Available: true}, member, nil
		}
	}

	switch {
	case !anyWorking:
		return &SlotCheck{Available: false, Reason: "staff is not working at the requested time"}, nil, nil
	case colliding != nil:
		return &SlotCheck{Available: false, Reason: fmt.Sprintf(
			"conflicts with an existing appointment from %s to %s",
			colliding.Start.Format("15:04"), colliding.End.Format("15:04"))}, nil, nil
	default:
		return &SlotCheck{Available: false, Reason: "the requested time is outside working hours"}, nil, nil
	}
}

// Book creates an appointment after re-validating the slot. idemKey, when
// set, makes retries return the original appointment instead of a duplicate.
func (s *Service) Book(ctx context.Context, req BookRequest, idemKey string) (*Appointment, error) {
	if req.CustomerID == uuid.Nil {
		return nil, invalidf("customer_id is required")
	}
	lc, err := s.load(ctx, req.TypeID, req.StaffID)
	if err != nil {
		return nil, err
	}

	check, member, err := s.checkSlot(ctx, lc, CheckRequest{
		TypeID: req.TypeID, StaffID: req.StaffID,
		Date: req.Date, StartTime: req.StartTime,
	})
	if err != nil {
		return nil, err
	}
	if !check.Available {
		return nil, fmt.Errorf("%w: %s", ErrConflict, check.Reason)
	}

	start, err := combine(req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}
	staffID := req.StaffID
	if staffID == nil && member != nil {
		id := member.ID
		staffID = &id
	}

	appt := &Appointment{
		CustomerID: req.CustomerID,
		StaffID:    staffID,
		TypeID:     req.TypeID,
		Date:       req.Date,
		StartAt:    start,
		EndAt:      start.Add(time.Duration(lc.apptType.DurationMinutes) * time.Minute),
		Status:     StatusScheduled,
		Notes:      req.Notes,
	}
	created, err := s.repo.CreateBooked(ctx, appt, idemKey)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("date", created.Date).
		Str("start", created.StartTime()).
		Msg("appointment booked")
	return created, nil
}

// Update reschedules or transitions an appointment. The slot is re-checked
// only when the time, date, staff or type actually changed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	timeChanged := false
	if req.TypeID != nil && *req.TypeID != a.TypeID {
		a.TypeID = *req.TypeID
		timeChanged = true
	}
	if req.StaffID != nil && (a.StaffID == nil || *req.StaffID != *a.StaffID) {
		a.StaffID = req.StaffID
		timeChanged = true
	}
	if req.Date != nil && *req.Date != a.Date {
		a.Date = *req.Date
		timeChanged = true
	}
	if req.StartTime != nil && *req.StartTime != a.StartTime() {
		timeChanged = true
	}
	if req.Notes != nil {
		a.Notes = req.Notes
	}

	if timeChanged {
		startTime := a.StartTime()
		if req.StartTime != nil {
			startTime = *req.StartTime
		}
		lc, err := s.load(ctx, a.TypeID, a.StaffID)
		if err != nil {
			return nil, err
		}
		check, member, err := s.checkSlot(ctx, lc, CheckRequest{
			TypeID: a.TypeID, StaffID: a.StaffID,
			Date: a.Date, StartTime: startTime,
			ExcludeID: &id,
		})
		if err != nil {
			return nil, err
		}
		if !check.Available {
			return nil, fmt.Errorf("%w: %s", ErrConflict, check.Reason)
		}
		if a.StaffID == nil && member != nil {
			mid := member.ID
			a.StaffID = &mid
		}
		start, err := combine(a.Date, startTime)
		if err != nil {
			return nil, err
		}
		a.StartAt = start
		a.EndAt = start.Add(time.Duration(lc.apptType.DurationMinutes) * time.Minute)
	}

	if req.Status != nil && *req.Status != a.Status {
		if !validStatuses[*req.Status] {
			return nil, invalidf("invalid status %q", *req.Status)
		}
		if *req.Status == StatusCancelled {
			return s.repo.Cancel(ctx, id, "staff", "")
		}
		now := s.nowFn()
		switch *req.Status {
		case StatusConfirmed:
			a.CustomerConfirmedAt = &now
		case StatusInProgress:
			a.StartedAt = &now
		case StatusCompleted:
			a.CompletedAt = &now
		}
		a.Status = *req.Status
	}

	if err := s.repo.UpdateBooked(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel marks an appointment cancelled. Cancelling an already cancelled
// appointment succeeds without side effects.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (*Appointment, error) {
	if cancelledBy == "" {
		cancelledBy = "staff"
	}
	return s.repo.Cancel(ctx, id, cancelledBy, reason)
}

// Delete removes an appointment row outright. Cancel is the normal path;
// this exists for cleaning up test and mistaken records.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.HardDelete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*History, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// combine builds a UTC timestamp from a calendar date and an HH:MM wall
// clock time.
func combine(date, hhmm string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04", date+" "+hhmm)
	if err != nil {
		return time.Time{}, invalidf("invalid date or time: %s %s", date, hhmm)
	}
	return t.UTC(), nil
}
