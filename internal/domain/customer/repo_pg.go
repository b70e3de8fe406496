package customer

import (
	"context"
	"fmt"
	"time"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const customerCols = `id, name, phone, email, notes, total_appointments, completed_appointments,
	cancelled_appointments, no_show_appointments, last_appointment_at, created_at, updated_at`

func (r *repoPG) scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Notes, &c.TotalAppointments,
		&c.CompletedAppointments, &c.CancelledAppointments, &c.NoShowAppointments,
		&c.LastAppointmentAt, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Customer) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO customers (id, name, phone, email, notes)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.Name, c.Phone, c.Email, c.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return r.scanCustomer(r.conn(ctx).QueryRow(ctx, `SELECT `+customerCols+` FROM customers WHERE id = $1`, id))
}

func (r *repoPG) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	return r.scanCustomer(r.conn(ctx).QueryRow(ctx, `SELECT `+customerCols+` FROM customers WHERE phone = $1`, phone))
}

func (r *repoPG) Update(ctx context.Context, c *Customer) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE customers SET name=$2, phone=$3, email=$4, notes=$5, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.Email, c.Notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	return err
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Customer, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if query != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+query+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+customerCols+` FROM customers`+where+fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Customer
	for rows.Next() {
		c, err := r.scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

func (r *repoPG) BumpStats(ctx context.Context, id uuid.UUID, total, completed, cancelled, noShow int, lastAt *time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE customers SET
			total_appointments = GREATEST(0, total_appointments + $2),
			completed_appointments = GREATEST(0, completed_appointments + $3),
			cancelled_appointments = GREATEST(0, cancelled_appointments + $4),
			no_show_appointments = GREATEST(0, no_show_appointments + $5),
			last_appointment_at = COALESCE($6, last_appointment_at),
			updated_at = NOW()
		WHERE id = $1`,
		id, total, completed, cancelled, noShow, lastAt)
	return err
}
