package catalog

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

// =========== AppointmentType Repository ===========

type typeRepoPG struct{ pool *pgxpool.Pool }

func NewTypeRepoPG(pool *pgxpool.Pool) TypeRepository { return &typeRepoPG{pool: pool} }

func (r *typeRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const typeCols = `id, name, description, duration_minutes, buffer_before_minutes, buffer_after_minutes,
	price_cents, advance_booking_days, max_advance_booking_days, same_day_booking, is_active,
	created_at, updated_at`

func (r *typeRepoPG) scanType(row pgx.Row) (*AppointmentType, error) {
	var t AppointmentType
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.DurationMinutes, &t.BufferBeforeMinutes,
		&t.BufferAfterMinutes, &t.PriceCents, &t.AdvanceBookingDays, &t.MaxAdvanceBookingDays,
		&t.SameDayBooking, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *typeRepoPG) Create(ctx context.Context, t *AppointmentType) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_types (id, name, description, duration_minutes, buffer_before_minutes,
			buffer_after_minutes, price_cents, advance_booking_days, max_advance_booking_days,
			same_day_booking, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.Name, t.Description, t.DurationMinutes, t.BufferBeforeMinutes,
		t.BufferAfterMinutes, t.PriceCents, t.AdvanceBookingDays, t.MaxAdvanceBookingDays,
		t.SameDayBooking, t.IsActive)
	return err
}

func (r *typeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	return r.scanType(r.conn(ctx).QueryRow(ctx, `SELECT `+typeCols+` FROM appointment_types WHERE id = $1`, id))
}

func (r *typeRepoPG) Update(ctx context.Context, t *AppointmentType) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment_types SET name=$2, description=$3, duration_minutes=$4,
			buffer_before_minutes=$5, buffer_after_minutes=$6, price_cents=$7,
			advance_booking_days=$8, max_advance_booking_days=$9, same_day_booking=$10,
			is_active=$11, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.DurationMinutes, t.BufferBeforeMinutes,
		t.BufferAfterMinutes, t.PriceCents, t.AdvanceBookingDays, t.MaxAdvanceBookingDays,
		t.SameDayBooking, t.IsActive)
	return err
}

func (r *typeRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointment_types SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *typeRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*AppointmentType, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE is_active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment_types`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+typeCols+` FROM appointment_types`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AppointmentType
	for rows.Next() {
		t, err := r.scanType(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

// =========== BookingSettings Repository ===========

type settingsRepoPG struct{ pool *pgxpool.Pool }

func NewSettingsRepoPG(pool *pgxpool.Pool) SettingsRepository { return &settingsRepoPG{pool: pool} }

func (r *settingsRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// Get returns the singleton settings row, falling back to defaults when the
// business has never saved settings.
func (r *settingsRepoPG) Get(ctx context.Context) (*BookingSettings, error) {
	var s BookingSettings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT min_advance_hours, slot_duration_minutes, buffer_between_appointments,
			same_day_booking_enabled, updated_at
		FROM booking_settings WHERE singleton`).Scan(
		&s.MinAdvanceHours, &s.SlotDurationMinutes, &s.BufferBetweenAppointments,
		&s.SameDayBookingEnabled, &s.UpdatedAt)
	if db.IsNotFound(err) {
		defaults := DefaultBookingSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepoPG) Save(ctx context.Context, s *BookingSettings) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO booking_settings (singleton, min_advance_hours, slot_duration_minutes,
			buffer_between_appointments, same_day_booking_enabled, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			min_advance_hours = EXCLUDED.min_advance_hours,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			buffer_between_appointments = EXCLUDED.buffer_between_appointments,
			same_day_booking_enabled = EXCLUDED.same_day_booking_enabled,
			updated_at = NOW()`,
		s.MinAdvanceHours, s.SlotDurationMinutes, s.BufferBetweenAppointments, s.SameDayBookingEnabled)
	return err
}
