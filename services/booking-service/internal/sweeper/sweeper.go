// Package sweeper releases slots whose holds were never paid for. Until a
// hold is swept it still blocks the slot; holding a dead slot a little too
// long beats double-booking a live one.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkurui/tutorhive/libs/db"
	"github.com/jkurui/tutorhive/services/booking-service/internal/outbox"
	"github.com/jkurui/tutorhive/services/booking-service/internal/storage"
)

type Sweeper struct {
	pool       *db.Pool
	sessions   *storage.SessionRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	tracer     trace.Tracer
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

func New(pool *db.Pool, sessions *storage.SessionRepository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		pool:       pool,
		sessions:   sessions,
		outboxRepo: outboxRepo,
		logger:     logger,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		tracer:     otel.Tracer("booking-service/sweeper"),
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logger.Error("hold sweep failed", "err", err)
			}
		}
	}
}

// sweepOnce expires one batch of overdue holds. Rows are locked with
// SKIP LOCKED so concurrent instances never fight over the same holds.
func (s *Sweeper) sweepOnce(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "sweeper.expire_holds")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	expired, err := s.sessions.ExpireDueHolds(ctx, tx, s.batchSize)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return tx.Commit(ctx)
	}

	for _, session := range expired {
		evt, err := outbox.SessionEvent(outbox.TopicSessionExpired, session)
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("holds.expired", len(expired)))
	s.logger.Info("expired holds released", "count", len(expired))
	return nil
}
