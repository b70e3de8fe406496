// Package outbox implements a transactional outbox. Booking writes insert
// events in the same transaction as the appointment row; a background
// dispatcher polls for unpublished events and hands them to registered
// handlers (history, customer stats, calendar sync, webhooks).
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is the envelope stored in outbox_events.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Tenant      string          `json:"tenant"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// Event types emitted by the booking flow.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentDeleted   = "appointment.deleted"
	EventCallRecorded         = "call.recorded"
)

// Insert writes an event inside the caller's transaction so that it commits
// or rolls back together with the domain write.
func Insert(ctx context.Context, tx pgx.Tx, tenant, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO shared.outbox_events (id, tenant, event_type, payload, attempts, created_at)
		VALUES ($1,$2,$3,$4,0,NOW())`,
		uuid.New(), tenant, eventType, body)
	return err
}

// Repository reads and marks outbox events. Events live in the shared schema
// so the dispatcher can drain all tenants with one poll loop.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue writes an event outside any transaction, for producers that have
// no domain write of their own, like the voice webhook.
func (r *Repository) Enqueue(ctx context.Context, tenant, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO shared.outbox_events (id, tenant, event_type, payload, attempts, created_at)
		VALUES ($1,$2,$3,$4,0,NOW())`,
		uuid.New(), tenant, eventType, body)
	return err
}

// FetchUnpublished claims up to limit unpublished events inside tx, locking
// the rows so concurrent dispatchers never double-deliver.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, tenant, event_type, payload, attempts, created_at
		FROM shared.outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Tenant, &e.Type, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkPublished stamps events as delivered.
func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE shared.outbox_events SET published_at = NOW() WHERE id = ANY($1)`, ids)
	return err
}

// MarkFailed increments the attempt counter so the event is retried on a
// later poll.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE shared.outbox_events SET attempts = attempts + 1 WHERE id = ANY($1)`, ids)
	return err
}

// Begin starts a transaction on the underlying pool.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}
