package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler processes one event type. A non-nil error leaves the event
// unpublished so it is retried on a later poll.
type Handler func(ctx context.Context, e Event) error

// Dispatcher polls the outbox and fans events out to handlers by type.
type Dispatcher struct {
	repo      *Repository
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
	handlers  map[string][]Handler

	// maxAttempts caps retries; events past it are published with a warning
	// instead of blocking the queue forever.
	maxAttempts int
}

func NewDispatcher(repo *Repository, logger zerolog.Logger, interval time.Duration, batchSize int) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{
		repo:        repo,
		logger:      logger.With().Str("component", "outbox").Logger(),
		interval:    interval,
		batchSize:   batchSize,
		handlers:    make(map[string][]Handler),
		maxAttempts: 10,
	}
}

// On registers a handler for an event type. Multiple handlers per type are
// allowed; all must succeed for the event to be marked published.
func (d *Dispatcher) On(eventType string, h Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.interval).Msg("outbox dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil {
				d.logger.Error().Err(err).Msg("outbox batch failed")
			}
		}
	}
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	tx, err := d.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	events, err := d.repo.FetchUnpublished(ctx, tx, d.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return tx.Commit(ctx)
	}

	var published, failed []uuid.UUID
	for _, e := range events {
		if err := d.handle(ctx, e); err != nil {
			if e.Attempts+1 >= d.maxAttempts {
				d.logger.Warn().
					Str("event_id", e.ID.String()).
					Str("event_type", e.Type).
					Int("attempts", e.Attempts+1).
					Err(err).
					Msg("outbox event dropped after max attempts")
				published = append(published, e.ID)
				continue
			}
			d.logger.Warn().
				Str("event_id", e.ID.String()).
				Str("event_type", e.Type).
				Err(err).
				Msg("outbox event handler failed, will retry")
			failed = append(failed, e.ID)
			continue
		}
		published = append(published, e.ID)
	}

	if err := d.repo.MarkPublished(ctx, tx, published); err != nil {
		return err
	}
	if err := d.repo.MarkFailed(ctx, tx, failed); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *Dispatcher) handle(ctx context.Context, e Event) error {
	for _, h := range d.handlers[e.Type] {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
