package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jkurui/tutorhive/libs/db"
)

// ErrDuplicateProviderEvent means this webhook delivery was already
// processed and the handler should acknowledge without re-applying it.
var ErrDuplicateProviderEvent = errors.New("provider event already recorded")

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

type BillingEventRepository struct {
	pool *db.Pool
}

func NewBillingEventRepository(pool *db.Pool) *BillingEventRepository {
	return &BillingEventRepository{pool: pool}
}

func (r *BillingEventRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertProviderEvent records a webhook delivery inside the caller's
// transaction so the idempotency marker commits atomically with whatever
// the event changed.
func (r *BillingEventRepository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO billing_provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, evt.Provider, evt.ProviderEventID, evt.EventType, evt.Payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateProviderEvent
	}
	return err
}
