package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jkurui/tutorhive/libs/db"
	"github.com/jkurui/tutorhive/services/booking-service/internal/availability"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// AvailabilityInput is the write payload in any accepted shape. Normalization
// happens inside Save, so no write path can store non-canonical rows.
type AvailabilityInput struct {
	Timezone        string                           `json:"timezone"`
	SlotSizeMinutes int                              `json:"slot_size_minutes"`
	BufferMinutes   int                              `json:"buffer_minutes"`
	Weekly          []availability.WeeklyWindowInput `json:"weekly"`
	Exceptions      []availability.ExceptionInput    `json:"exceptions"`
}

var ErrInvalidSettings = errors.New("invalid availability settings")

// Save validates the settings, normalizes the windows, and replaces the
// tutor's availability document in one transaction. It returns the canonical
// form actually stored. Malformed individual windows are dropped, never
// rejected; malformed settings (timezone, slot size, buffer) fail the write.
func (r *AvailabilityRepository) Save(ctx context.Context, tutorID string, in AvailabilityInput) (availability.TutorAvailability, error) {
	if _, err := time.LoadLocation(in.Timezone); err != nil || in.Timezone == "" {
		return availability.TutorAvailability{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, in.Timezone)
	}
	if !availability.ValidSlotSize(in.SlotSizeMinutes) {
		return availability.TutorAvailability{}, fmt.Errorf("%w: slot_size_minutes out of range", ErrInvalidSettings)
	}
	if !availability.ValidBuffer(in.BufferMinutes) {
		return availability.TutorAvailability{}, fmt.Errorf("%w: buffer_minutes out of range", ErrInvalidSettings)
	}

	weekly := availability.NormalizeWeekly(in.Weekly)
	exceptions := availability.NormalizeExceptions(in.Exceptions)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return availability.TutorAvailability{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO tutor_availability (tutor_id, timezone, slot_size_minutes, buffer_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tutor_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			slot_size_minutes = EXCLUDED.slot_size_minutes,
			buffer_minutes = EXCLUDED.buffer_minutes,
			updated_at = now()
	`, tutorID, in.Timezone, in.SlotSizeMinutes, in.BufferMinutes)
	if err != nil {
		return availability.TutorAvailability{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_weekly_windows WHERE tutor_id = $1`, tutorID); err != nil {
		return availability.TutorAvailability{}, err
	}
	for _, w := range weekly {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_weekly_windows (tutor_id, day, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, tutorID, string(w.Day), w.StartMinute, w.EndMinute); err != nil {
			return availability.TutorAvailability{}, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_exception_windows WHERE tutor_id = $1`, tutorID); err != nil {
		return availability.TutorAvailability{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM availability_exception_days WHERE tutor_id = $1`, tutorID); err != nil {
		return availability.TutorAvailability{}, err
	}
	for _, day := range exceptions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_exception_days (tutor_id, on_date)
			VALUES ($1, $2)
		`, tutorID, day.Date); err != nil {
			return availability.TutorAvailability{}, err
		}
		for _, w := range day.Windows {
			if _, err := tx.Exec(ctx, `
				INSERT INTO availability_exception_windows (tutor_id, on_date, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, tutorID, day.Date, w.StartMinute, w.EndMinute); err != nil {
				return availability.TutorAvailability{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return availability.TutorAvailability{}, err
	}

	return availability.TutorAvailability{
		TutorID:         tutorID,
		Timezone:        in.Timezone,
		SlotSizeMinutes: in.SlotSizeMinutes,
		BufferMinutes:   in.BufferMinutes,
		Weekly:          weekly,
		Exceptions:      exceptions,
	}, nil
}

// Get loads the canonical availability document. The bool result is false
// when the tutor has no availability configured.
func (r *AvailabilityRepository) Get(ctx context.Context, tutorID string) (availability.TutorAvailability, bool, error) {
	var av availability.TutorAvailability
	err := r.pool.QueryRow(ctx, `
		SELECT tutor_id, timezone, slot_size_minutes, buffer_minutes
		FROM tutor_availability
		WHERE tutor_id = $1
	`, tutorID).Scan(&av.TutorID, &av.Timezone, &av.SlotSizeMinutes, &av.BufferMinutes)
	if err != nil {
		if IsNotFound(err) {
			return availability.TutorAvailability{}, false, nil
		}
		return availability.TutorAvailability{}, false, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day, start_minute, end_minute
		FROM availability_weekly_windows
		WHERE tutor_id = $1
		ORDER BY day, start_minute
	`, tutorID)
	if err != nil {
		return availability.TutorAvailability{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var w availability.WeeklyWindow
		var day string
		if err := rows.Scan(&day, &w.StartMinute, &w.EndMinute); err != nil {
			return availability.TutorAvailability{}, false, err
		}
		w.Day = availability.Weekday(day)
		av.Weekly = append(av.Weekly, w)
	}
	if rows.Err() != nil {
		return availability.TutorAvailability{}, false, rows.Err()
	}

	dayRows, err := r.pool.Query(ctx, `
		SELECT d.on_date::text, w.start_minute, w.end_minute
		FROM availability_exception_days d
		LEFT JOIN availability_exception_windows w
			ON w.tutor_id = d.tutor_id AND w.on_date = d.on_date
		WHERE d.tutor_id = $1
		ORDER BY d.on_date, w.start_minute
	`, tutorID)
	if err != nil {
		return availability.TutorAvailability{}, false, err
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var date string
		var start, end *int
		if err := dayRows.Scan(&date, &start, &end); err != nil {
			return availability.TutorAvailability{}, false, err
		}
		if len(av.Exceptions) == 0 || av.Exceptions[len(av.Exceptions)-1].Date != date {
			av.Exceptions = append(av.Exceptions, availability.ExceptionDay{Date: date})
		}
		if start != nil && end != nil {
			last := &av.Exceptions[len(av.Exceptions)-1]
			last.Windows = append(last.Windows, availability.MinuteWindow{StartMinute: *start, EndMinute: *end})
		}
	}
	if dayRows.Err() != nil {
		return availability.TutorAvailability{}, false, dayRows.Err()
	}

	return av, true, nil
}
