package storage

import (
	"context"
	"time"

	"github.com/jkurui/tutorhive/libs/db"
)

type TutorRepository struct {
	pool *db.Pool
}

func NewTutorRepository(pool *db.Pool) *TutorRepository {
	return &TutorRepository{pool: pool}
}

type Tutor struct {
	ID          string
	DisplayName string
	IsListed    bool
	CreatedAt   time.Time
}

func (r *TutorRepository) Upsert(ctx context.Context, tutorID, displayName string, isListed bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tutors (id, display_name, is_listed)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			is_listed = EXCLUDED.is_listed,
			updated_at = now()
	`, tutorID, displayName, isListed)
	return err
}

func (r *TutorRepository) Get(ctx context.Context, tutorID string) (Tutor, error) {
	var t Tutor
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, is_listed, created_at
		FROM tutors
		WHERE id = $1
	`, tutorID).Scan(&t.ID, &t.DisplayName, &t.IsListed, &t.CreatedAt)
	return t, err
}

// IsListed reports whether the tutor exists and is publicly listed. A missing
// row is simply "not listed", not an error.
func (r *TutorRepository) IsListed(ctx context.Context, tutorID string) (bool, error) {
	var listed bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tutors WHERE id = $1 AND is_listed
		)
	`, tutorID).Scan(&listed)
	return listed, err
}

func (r *TutorRepository) ListListed(ctx context.Context, limit int) ([]Tutor, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, display_name, is_listed, created_at
		FROM tutors
		WHERE is_listed
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tutor
	for rows.Next() {
		var t Tutor
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.IsListed, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
