package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByPhone(ctx context.Context, phone string) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, limit, offset int) ([]*Customer, int, error)
	// BumpStats adjusts the denormalized appointment counters. Deltas may be
	// negative (e.g. a completed appointment reverted to scheduled).
	BumpStats(ctx context.Context, id uuid.UUID, total, completed, cancelled, noShow int, lastAt *time.Time) error
}
