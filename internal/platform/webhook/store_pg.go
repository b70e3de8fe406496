package webhook

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frontdesk/frontdesk/internal/platform/db"
	"github.com/frontdesk/frontdesk/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// pgStore persists endpoints and the delivery log in the tenant schema.
type pgStore struct{ pool *pgxpool.Pool }

// NewPGStore creates a Postgres-backed Store.
func NewPGStore(pool *pgxpool.Pool) Store { return &pgStore{pool: pool} }

func (s *pgStore) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

const endpointCols = `id, tenant_id, url, secret, events, enabled, created_at`

func scanEndpoint(row pgx.Row) (*Endpoint, error) {
	var ep Endpoint
	err := row.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &ep.Events, &ep.Enabled, &ep.CreatedAt)
	return &ep, err
}

func (s *pgStore) SaveEndpoint(ctx context.Context, ep *Endpoint) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO webhook_endpoints (id, tenant_id, url, secret, events, enabled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ep.ID, ep.TenantID, ep.URL, ep.Secret, ep.Events, ep.Enabled, ep.CreatedAt)
	return err
}

func (s *pgStore) Endpoint(ctx context.Context, id string) (*Endpoint, error) {
	return scanEndpoint(s.conn(ctx).QueryRow(ctx,
		`SELECT `+endpointCols+` FROM webhook_endpoints WHERE id = $1`, id))
}

func (s *pgStore) Endpoints(ctx context.Context, tenantID string, p pagination.Params) ([]*Endpoint, int, error) {
	var total int
	if err := s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM webhook_endpoints WHERE ($1 = '' OR tenant_id = $1)`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+endpointCols+` FROM webhook_endpoints
		WHERE ($1 = '' OR tenant_id = $1)
		ORDER BY created_at LIMIT $2 OFFSET $3`, tenantID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ep)
	}
	return items, total, nil
}

func (s *pgStore) UpdateEndpoint(ctx context.Context, ep *Endpoint) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE webhook_endpoints SET url=$2, events=$3, enabled=$4 WHERE id = $1`,
		ep.ID, ep.URL, ep.Events, ep.Enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) DeleteEndpoint(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) LogDelivery(ctx context.Context, d *Delivery) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO webhook_deliveries (id, endpoint_id, event_id, event_type, payload,
			signature, status_code, response_body, duration_ms, attempt, delivered, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		d.ID, d.EndpointID, d.EventID, d.EventType, d.Payload,
		d.Signature, d.StatusCode, d.ResponseBody, d.DurationMS, d.Attempt, d.Delivered, d.Error, d.CreatedAt)
	return err
}

const deliveryCols = `id, endpoint_id, event_id, event_type, payload, signature,
	status_code, response_body, duration_ms, attempt, delivered, error, created_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.EndpointID, &d.EventID, &d.EventType, &d.Payload, &d.Signature,
		&d.StatusCode, &d.ResponseBody, &d.DurationMS, &d.Attempt, &d.Delivered, &d.Error, &d.CreatedAt)
	return &d, err
}

func (s *pgStore) Deliveries(ctx context.Context, endpointID string, p pagination.Params) ([]*Delivery, int, error) {
	var total int
	if err := s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM webhook_deliveries WHERE endpoint_id = $1`, endpointID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+deliveryCols+` FROM webhook_deliveries
		WHERE endpoint_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, endpointID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}

func (s *pgStore) Delivery(ctx context.Context, id string) (*Delivery, error) {
	return scanDelivery(s.conn(ctx).QueryRow(ctx,
		`SELECT `+deliveryCols+` FROM webhook_deliveries WHERE id = $1`, id))
}
