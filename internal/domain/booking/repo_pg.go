package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/frontdesk/internal/platform/db"
	"github.com/frontdesk/frontdesk/internal/platform/outbox"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// begin starts a transaction on the tenant connection when one is bound to
// the context, so transactional writes keep the tenant search_path.
func (r *repoPG) begin(ctx context.Context) (pgx.Tx, error) {
	if c := db.ConnFromContext(ctx); c != nil {
		return c.Begin(ctx)
	}
	return r.pool.Begin(ctx)
}

const apptCols = `id, customer_id, staff_id, appointment_type_id, to_char(appointment_date, 'YYYY-MM-DD'),
	start_at, end_at, status, notes, customer_confirmed_at, started_at, completed_at,
	cancelled_at, cancelled_by, cancellation_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.StaffID, &a.TypeID, &a.Date,
		&a.StartAt, &a.EndAt, &a.Status, &a.Notes, &a.CustomerConfirmedAt, &a.StartedAt,
		&a.CompletedAt, &a.CancelledAt, &a.CancelledBy, &a.CancellationReason,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) BusyIntervals(ctx context.Context, staffID uuid.UUID, date string, excludeID *uuid.UUID) ([]BusyInterval, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.start_at, a.end_at,
			GREATEST(t.buffer_before_minutes, t.buffer_after_minutes)
		FROM appointments a
		JOIN appointment_types t ON t.id = a.appointment_type_id
		WHERE a.staff_id = $1
		  AND a.appointment_date = $2
		  AND a.status NOT IN ('cancelled', 'no_show')
		  AND ($3::uuid IS NULL OR a.id <> $3)
		ORDER BY a.start_at`,
		staffID, date, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []BusyInterval
	for rows.Next() {
		var b BusyInterval
		if err := rows.Scan(&b.AppointmentID, &b.Start, &b.End, &b.BufferMinutes); err != nil {
			return nil, err
		}
		busy = append(busy, b)
	}
	return busy, rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

const apptJoinedCols = `a.id, a.customer_id, a.staff_id, a.appointment_type_id,
	to_char(a.appointment_date, 'YYYY-MM-DD'), a.start_at, a.end_at, a.status, a.notes,
	a.customer_confirmed_at, a.started_at, a.completed_at,
	a.cancelled_at, a.cancelled_by, a.cancellation_reason, a.created_at, a.updated_at,
	c.name, c.phone, s.name, t.name, t.duration_minutes`

func scanJoined(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.StaffID, &a.TypeID, &a.Date,
		&a.StartAt, &a.EndAt, &a.Status, &a.Notes,
		&a.CustomerConfirmedAt, &a.StartedAt, &a.CompletedAt,
		&a.CancelledAt, &a.CancelledBy, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
		&a.CustomerName, &a.CustomerPhone, &a.StaffName, &a.TypeName, &a.DurationMinutes)
	return &a, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.CustomerID != nil {
		where += fmt.Sprintf(` AND a.customer_id = $%d`, idx)
		args = append(args, *f.CustomerID)
		idx++
	}
	if f.StaffID != nil {
		where += fmt.Sprintf(` AND a.staff_id = $%d`, idx)
		args = append(args, *f.StaffID)
		idx++
	}
	if f.DateFrom != "" {
		where += fmt.Sprintf(` AND a.appointment_date >= $%d`, idx)
		args = append(args, f.DateFrom)
		idx++
	}
	if f.DateTo != "" {
		where += fmt.Sprintf(` AND a.appointment_date <= $%d`, idx)
		args = append(args, f.DateTo)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptJoinedCols + `
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		LEFT JOIN staff s ON s.id = a.staff_id
		JOIN appointment_types t ON t.id = a.appointment_type_id` +
		where + fmt.Sprintf(` ORDER BY a.appointment_date, a.start_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanJoined(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) CreateBooked(ctx context.Context, a *Appointment, idemKey string) (*Appointment, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if idemKey != "" {
		var existingID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT appointment_id FROM idempotency_keys WHERE key = $1 FOR UPDATE`,
			idemKey).Scan(&existingID)
		if err == nil {
			existing, scanErr := scanAppointment(tx.QueryRow(ctx,
				`SELECT `+apptCols+` FROM appointments WHERE id = $1`, existingID))
			if scanErr != nil {
				return nil, scanErr
			}
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return nil, commitErr
			}
			return existing, nil
		}
		if !db.IsNotFound(err) {
			return nil, err
		}
	}

	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, customer_id, staff_id, appointment_type_id,
			appointment_date, start_at, end_at, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		a.ID, a.CustomerID, a.StaffID, a.TypeID, a.Date, a.StartAt, a.EndAt, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsConflict(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}

	if idemKey != "" {
		if _, err := tx.Exec(ctx,
			`INSERT INTO idempotency_keys (key, appointment_id) VALUES ($1, $2)`,
			idemKey, a.ID); err != nil {
			return nil, err
		}
	}

	tenant := db.TenantFromContext(ctx)
	if err := outbox.Insert(ctx, tx, tenant, outbox.EventAppointmentCreated, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) UpdateBooked(ctx context.Context, a *Appointment) error {
	tx, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET
			staff_id = $2, appointment_type_id = $3, appointment_date = $4,
			start_at = $5, end_at = $6, status = $7, notes = $8,
			customer_confirmed_at = $9, started_at = $10, completed_at = $11,
			cancelled_at = $12, cancelled_by = $13, cancellation_reason = $14,
			updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.StaffID, a.TypeID, a.Date, a.StartAt, a.EndAt, a.Status, a.Notes,
		a.CustomerConfirmedAt, a.StartedAt, a.CompletedAt,
		a.CancelledAt, a.CancelledBy, a.CancellationReason)
	if db.IsConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	tenant := db.TenantFromContext(ctx)
	eventType := outbox.EventAppointmentUpdated
	if a.Status == StatusCancelled {
		eventType = outbox.EventAppointmentCancelled
	}
	if err := outbox.Insert(ctx, tx, tenant, eventType, a); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *repoPG) Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (*Appointment, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Already cancelled: idempotent success, no new event.
	if a.Status == StatusCancelled {
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return a, nil
	}

	now := time.Now().UTC()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancelledBy = &cancelledBy
	a.CancellationReason = &reason

	if _, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2, cancelled_at = $3, cancelled_by = $4,
			cancellation_reason = $5, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.CancelledAt, a.CancelledBy, a.CancellationReason); err != nil {
		return nil, err
	}

	tenant := db.TenantFromContext(ctx)
	if err := outbox.Insert(ctx, tx, tenant, outbox.EventAppointmentCancelled, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) HardDelete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return err
	}

	tenant := db.TenantFromContext(ctx)
	if err := outbox.Insert(ctx, tx, tenant, outbox.EventAppointmentDeleted, a); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *repoPG) AddHistory(ctx context.Context, h *History) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_history (id, appointment_id, action, actor, details)
		VALUES ($1,$2,$3,$4,$5)`,
		h.ID, h.AppointmentID, h.Action, h.Actor, h.Details)
	return err
}

func (r *repoPG) ListHistory(ctx context.Context, appointmentID uuid.UUID) ([]*History, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, action, actor, details, created_at
		FROM appointment_history WHERE appointment_id = $1 ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*History
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.ID, &h.AppointmentID, &h.Action, &h.Actor, &h.Details, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}
