// Package booking decides whether a requested session may be held. The
// validator's verdict is advisory: it regenerates the tutor's slots and
// demands an exact match, but the final word on double booking belongs to
// the partial unique index the insert runs into.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jkurui/tutorhive/services/booking-service/internal/availability"
)

var (
	ErrTutorNotFound   = errors.New("tutor not found or not listed")
	ErrNoAvailability  = errors.New("tutor has no availability configured")
	ErrInvalidRange    = errors.New("requested time range is invalid")
	ErrSlotUnavailable = errors.New("requested slot is not available")
)

// DirectorySource answers whether a tutor is listed for booking.
type DirectorySource interface {
	IsListed(ctx context.Context, tutorID string) (bool, error)
}

// AvailabilitySource loads a tutor's canonical availability. The bool is
// false when none is configured.
type AvailabilitySource interface {
	Get(ctx context.Context, tutorID string) (availability.TutorAvailability, bool, error)
}

// BusySource lists a tutor's active session intervals overlapping a range.
type BusySource interface {
	ListActiveIntervals(ctx context.Context, tutorID string, from, to time.Time) ([]availability.Interval, error)
}

type Validator struct {
	directory DirectorySource
	avail     AvailabilitySource
	sessions  BusySource
	now       func() time.Time
}

func NewValidator(directory DirectorySource, avail AvailabilitySource, sessions BusySource) *Validator {
	return &Validator{
		directory: directory,
		avail:     avail,
		sessions:  sessions,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock fixes the validator's clock. Tests use this.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate checks that the requested [startAt, endAt) is a slot the
// generator would offer right now. A shifted or partially overlapping
// request is rejected, never snapped to the nearest slot.
//
// The busy query is widened by the tutor's buffer on both sides so sessions
// just outside the requested range still knock out the slot, matching what
// the public slot listing shows.
func (v *Validator) Validate(ctx context.Context, tutorID string, startAt, endAt time.Time) error {
	listed, err := v.directory.IsListed(ctx, tutorID)
	if err != nil {
		return err
	}
	if !listed {
		return ErrTutorNotFound
	}

	av, ok, err := v.avail.Get(ctx, tutorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAvailability
	}

	startAt = startAt.UTC()
	endAt = endAt.UTC()
	duration := endAt.Sub(startAt)
	if duration <= 0 || duration%time.Minute != 0 {
		return ErrInvalidRange
	}
	durationMin := int(duration / time.Minute)

	loc, err := time.LoadLocation(av.Timezone)
	if err != nil {
		return ErrNoAvailability
	}
	fromDate := startAt.In(loc).Format("2006-01-02")
	toDate := endAt.In(loc).Format("2006-01-02")

	pad := time.Duration(av.BufferMinutes) * time.Minute
	busy, err := v.sessions.ListActiveIntervals(ctx, tutorID, startAt.Add(-pad), endAt.Add(pad))
	if err != nil {
		return err
	}

	slots := availability.Generate(availability.GenerateParams{
		Timezone:        av.Timezone,
		Weekly:          av.Weekly,
		Exceptions:      av.Exceptions,
		From:            fromDate,
		To:              toDate,
		SlotSizeMinutes: av.SlotSizeMinutes,
		DurationMinutes: durationMin,
		BufferMinutes:   av.BufferMinutes,
		Busy:            busy,
		Now:             v.now(),
	})
	for _, s := range slots {
		if s.StartAt.Equal(startAt) && s.EndAt.Equal(endAt) {
			return nil
		}
	}
	return ErrSlotUnavailable
}
