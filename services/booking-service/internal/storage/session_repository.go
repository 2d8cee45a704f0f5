package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jkurui/tutorhive/libs/db"
	"github.com/jkurui/tutorhive/services/booking-service/internal/availability"
	"github.com/jkurui/tutorhive/services/booking-service/internal/model"
)

type SessionRepository struct {
	pool *db.Pool
}

func NewSessionRepository(pool *db.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const sessionColumns = `id, tutor_id, student_id, start_at, end_at, status, hold_expires_at, stripe_session_id, cancel_reason, created_at`

func scanSession(row pgx.Row) (model.TutoringSession, error) {
	var s model.TutoringSession
	err := row.Scan(&s.ID, &s.TutorID, &s.StudentID, &s.StartAt, &s.EndAt,
		&s.Status, &s.HoldExpiresAt, &s.StripeSessionID, &s.CancelReason, &s.CreatedAt)
	return s, err
}

// CreateHold inserts a hold row inside the caller's transaction. The partial
// unique index on (tutor_id, start_at) over active statuses is the real
// concurrency guard; the advisory check the validator runs beforehand only
// covers the common case. A losing racer surfaces here as IsConflict.
func (r *SessionRepository) CreateHold(ctx context.Context, tx pgx.Tx, tutorID, studentID string, startAt, endAt time.Time, holdTTL time.Duration) (model.TutoringSession, error) {
	id := uuid.NewString()
	expires := time.Now().UTC().Add(holdTTL)
	return scanSession(tx.QueryRow(ctx, `
		INSERT INTO tutoring_sessions (id, tutor_id, student_id, start_at, end_at, status, hold_expires_at)
		VALUES ($1, $2, $3, $4, $5, 'hold', $6)
		RETURNING `+sessionColumns,
		id, tutorID, studentID, startAt.UTC(), endAt.UTC(), expires))
}

// ListActiveIntervals returns the busy intervals for a tutor overlapping
// [from, to). Expired holds the sweeper has not yet flipped still count.
func (r *SessionRepository) ListActiveIntervals(ctx context.Context, tutorID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at, end_at
		FROM tutoring_sessions
		WHERE tutor_id = $1
		  AND status = ANY($2)
		  AND start_at < $4 AND end_at > $3
		ORDER BY start_at
	`, tutorID, model.ActiveStatuses, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *SessionRepository) Get(ctx context.Context, id string) (model.TutoringSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM tutoring_sessions WHERE id = $1
	`, id))
}

func (r *SessionRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.TutoringSession, error) {
	return scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM tutoring_sessions WHERE id = $1 FOR UPDATE
	`, id))
}

// BeginPayment moves a live hold to payment_pending, records the Stripe
// checkout session id the webhook will later match on, and extends the hold
// so the slot stays reserved while the student pays.
func (r *SessionRepository) BeginPayment(ctx context.Context, tx pgx.Tx, id, stripeSessionID string, expiresAt time.Time) (model.TutoringSession, error) {
	return scanSession(tx.QueryRow(ctx, `
		UPDATE tutoring_sessions
		SET status = 'payment_pending', stripe_session_id = $2, hold_expires_at = $3
		WHERE id = $1 AND status = 'hold' AND hold_expires_at > now()
		RETURNING `+sessionColumns,
		id, stripeSessionID, expiresAt.UTC()))
}

func (r *SessionRepository) ConfirmByStripeSession(ctx context.Context, tx pgx.Tx, stripeSessionID string) (model.TutoringSession, error) {
	return scanSession(tx.QueryRow(ctx, `
		UPDATE tutoring_sessions
		SET status = 'confirmed', hold_expires_at = NULL
		WHERE stripe_session_id = $1 AND status IN ('hold', 'payment_pending')
		RETURNING `+sessionColumns,
		stripeSessionID))
}

func (r *SessionRepository) CancelByStripeSession(ctx context.Context, tx pgx.Tx, stripeSessionID, reason string) (model.TutoringSession, error) {
	return scanSession(tx.QueryRow(ctx, `
		UPDATE tutoring_sessions
		SET status = 'cancelled', cancel_reason = $2, hold_expires_at = NULL
		WHERE stripe_session_id = $1 AND status IN ('hold', 'payment_pending')
		RETURNING `+sessionColumns,
		stripeSessionID, reason))
}

// Cancel is idempotent: cancelling an already-cancelled session returns the
// row unchanged, any other terminal status is reported as not found.
func (r *SessionRepository) Cancel(ctx context.Context, tx pgx.Tx, id, reason string) (model.TutoringSession, bool, error) {
	s, err := scanSession(tx.QueryRow(ctx, `
		UPDATE tutoring_sessions
		SET status = 'cancelled', cancel_reason = $2, hold_expires_at = NULL
		WHERE id = $1 AND status IN ('hold', 'payment_pending', 'confirmed')
		RETURNING `+sessionColumns,
		id, reason))
	if err == nil {
		return s, true, nil
	}
	if !IsNotFound(err) {
		return model.TutoringSession{}, false, err
	}
	s, err = r.Get(ctx, id)
	if err != nil {
		return model.TutoringSession{}, false, err
	}
	if s.Status == model.StatusCancelled {
		return s, false, nil
	}
	return model.TutoringSession{}, false, pgx.ErrNoRows
}

func (r *SessionRepository) Complete(ctx context.Context, tx pgx.Tx, id string) (model.TutoringSession, error) {
	return scanSession(tx.QueryRow(ctx, `
		UPDATE tutoring_sessions
		SET status = 'completed'
		WHERE id = $1 AND status = 'confirmed' AND end_at <= now()
		RETURNING `+sessionColumns,
		id))
}

// ExpireDueHolds flips overdue holds and payment_pending sessions to
// cancelled and returns them so the sweeper can emit an event per row.
// Runs inside the sweeper's transaction.
func (r *SessionRepository) ExpireDueHolds(ctx context.Context, tx pgx.Tx, limit int) ([]model.TutoringSession, error) {
	rows, err := tx.Query(ctx, `
		UPDATE tutoring_sessions
		SET status = 'cancelled', cancel_reason = 'hold_expired'
		WHERE id IN (
			SELECT id FROM tutoring_sessions
			WHERE status IN ('hold', 'payment_pending') AND hold_expires_at <= now()
			ORDER BY hold_expires_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+sessionColumns,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TutoringSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepository) ListByTutor(ctx context.Context, tutorID string, limit int) ([]model.TutoringSession, error) {
	return r.list(ctx, `tutor_id`, tutorID, limit)
}

func (r *SessionRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]model.TutoringSession, error) {
	return r.list(ctx, `student_id`, studentID, limit)
}

func (r *SessionRepository) list(ctx context.Context, column, id string, limit int) ([]model.TutoringSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM tutoring_sessions
		WHERE `+column+` = $1
		ORDER BY start_at DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TutoringSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// IsConflict reports whether err is a unique violation from the active-slot
// partial index, meaning another booking already claimed the slot.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
