package staff

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/frontdesk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Staff Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, name, email, phone, role, is_active, created_at, updated_at`

func (r *repoPG) scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff (id, name, email, phone, role, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.Name, s.Email, s.Phone, s.Role, s.IsActive)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return r.scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Staff) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET name=$2, email=$3, phone=$4, role=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Email, s.Phone, s.Role, s.IsActive)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE staff SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Staff, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE is_active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staffCols+` FROM staff`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := r.scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const availCols = `id, staff_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'), is_available, is_override, created_at, updated_at`

func (r *availabilityRepoPG) scanAvailability(row pgx.Row) (*Availability, error) {
	var a Availability
	err := row.Scan(&a.ID, &a.StaffID, &a.Date, &a.StartTime, &a.EndTime,
		&a.IsAvailable, &a.IsOverride, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *availabilityRepoPG) Upsert(ctx context.Context, a *Availability) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff_availability (id, staff_id, date, start_time, end_time, is_available, is_override)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (staff_id, date) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_available = EXCLUDED.is_available,
			is_override = EXCLUDED.is_override,
			updated_at = NOW()`,
		a.ID, a.StaffID, a.Date, a.StartTime, a.EndTime, a.IsAvailable, a.IsOverride)
	return err
}

func (r *availabilityRepoPG) ListByStaff(ctx context.Context, staffID uuid.UUID, dateFrom, dateTo string) ([]*Availability, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+availCols+` FROM staff_availability
		WHERE staff_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`, staffID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Availability
	for rows.Next() {
		a, err := r.scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *availabilityRepoPG) GetForDate(ctx context.Context, staffID uuid.UUID, date string) (*Availability, error) {
	a, err := r.scanAvailability(r.conn(ctx).QueryRow(ctx, `
		SELECT `+availCols+` FROM staff_availability
		WHERE staff_id = $1 AND date = $2`, staffID, date))
	if db.IsNotFound(err) {
		return nil, ErrAvailabilityNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *availabilityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff_availability WHERE id = $1`, id)
	return err
}

func (r *availabilityRepoPG) OverrideDates(ctx context.Context, staffID uuid.UUID, dateFrom, dateTo string) (map[string]bool, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD') FROM staff_availability
		WHERE staff_id = $1 AND date >= $2 AND date <= $3 AND is_override`,
		staffID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// =========== OfficeHours Repository ===========

type officeHoursRepoPG struct{ pool *pgxpool.Pool }

func NewOfficeHoursRepoPG(pool *pgxpool.Pool) OfficeHoursRepository {
	return &officeHoursRepoPG{pool: pool}
}

func (r *officeHoursRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *officeHoursRepoPG) GetWeek(ctx context.Context) ([]*OfficeHours, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT day_of_week, to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'), is_open
		FROM office_hours ORDER BY day_of_week`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var week []*OfficeHours
	for rows.Next() {
		var oh OfficeHours
		if err := rows.Scan(&oh.DayOfWeek, &oh.OpenTime, &oh.CloseTime, &oh.IsOpen); err != nil {
			return nil, err
		}
		week = append(week, &oh)
	}
	return week, rows.Err()
}

func (r *officeHoursRepoPG) SaveWeek(ctx context.Context, week []*OfficeHours) error {
	for _, oh := range week {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO office_hours (day_of_week, open_time, close_time, is_open)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (day_of_week) DO UPDATE SET
				open_time = EXCLUDED.open_time,
				close_time = EXCLUDED.close_time,
				is_open = EXCLUDED.is_open`,
			oh.DayOfWeek, oh.OpenTime, oh.CloseTime, oh.IsOpen)
		if err != nil {
			return err
		}
	}
	return nil
}
