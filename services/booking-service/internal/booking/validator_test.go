package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jkurui/tutorhive/services/booking-service/internal/availability"
)

type stubDirectory struct {
	listed map[string]bool
}

func (d stubDirectory) IsListed(_ context.Context, tutorID string) (bool, error) {
	return d.listed[tutorID], nil
}

type stubAvailability struct {
	byTutor map[string]availability.TutorAvailability
}

func (a stubAvailability) Get(_ context.Context, tutorID string) (availability.TutorAvailability, bool, error) {
	av, ok := a.byTutor[tutorID]
	return av, ok, nil
}

type stubBusy struct {
	intervals []availability.Interval
}

func (b stubBusy) ListActiveIntervals(_ context.Context, _ string, _, _ time.Time) ([]availability.Interval, error) {
	return b.intervals, nil
}

// 2026-06-01 is a Monday with a 14:00-15:00 exception overriding the weekly
// 09:00-17:00 window.
func testValidator(busy []availability.Interval) *Validator {
	directory := stubDirectory{listed: map[string]bool{"tutor-1": true}}
	avail := stubAvailability{byTutor: map[string]availability.TutorAvailability{
		"tutor-1": {
			TutorID:         "tutor-1",
			Timezone:        "UTC",
			SlotSizeMinutes: 60,
			BufferMinutes:   0,
			Weekly:          []availability.WeeklyWindow{{Day: availability.Monday, StartMinute: 540, EndMinute: 1020}},
			Exceptions: []availability.ExceptionDay{
				{Date: "2026-06-01", Windows: []availability.MinuteWindow{{StartMinute: 840, EndMinute: 900}}},
			},
		},
	}}
	v := NewValidator(directory, avail, stubBusy{intervals: busy})
	return v.WithClock(func() time.Time {
		return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	})
}

func TestValidate_ExactMatchSucceeds(t *testing.T) {
	v := testValidator(nil)
	start := time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	if err := v.Validate(context.Background(), "tutor-1", start, end); err != nil {
		t.Fatalf("expected exact match to pass, got %v", err)
	}
}

func TestValidate_ShiftedRequestConflicts(t *testing.T) {
	v := testValidator(nil)
	start := time.Date(2026, 6, 1, 14, 1, 0, 0, time.UTC)
	end := time.Date(2026, 6, 1, 15, 1, 0, 0, time.UTC)
	err := v.Validate(context.Background(), "tutor-1", start, end)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for a shifted request, got %v", err)
	}
}

func TestValidate_ExceptionSuppressesWeeklySlot(t *testing.T) {
	v := testValidator(nil)
	// 09:00 would be fine under the weekly window, but the exception
	// replaces the whole day.
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	err := v.Validate(context.Background(), "tutor-1", start, end)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable on an exception day, got %v", err)
	}
}

func TestValidate_WeeklyDayStillWorks(t *testing.T) {
	v := testValidator(nil)
	// 2026-06-08 is the following Monday, no exception.
	start := time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 8, 10, 0, 0, 0, time.UTC)
	if err := v.Validate(context.Background(), "tutor-1", start, end); err != nil {
		t.Fatalf("expected weekly slot to validate, got %v", err)
	}
}

func TestValidate_ArbitraryDurationOnStepGrid(t *testing.T) {
	v := testValidator(nil)
	// 90 minutes starting on the hour grid fits inside 09:00-17:00.
	start := time.Date(2026, 6, 8, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 8, 11, 30, 0, 0, time.UTC)
	if err := v.Validate(context.Background(), "tutor-1", start, end); err != nil {
		t.Fatalf("expected 90m booking on the grid to validate, got %v", err)
	}
}

func TestValidate_BusyIntervalConflicts(t *testing.T) {
	v := testValidator([]availability.Interval{{
		Start: time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 6, 8, 10, 0, 0, 0, time.UTC),
	}})
	start := time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 8, 10, 0, 0, 0, time.UTC)
	err := v.Validate(context.Background(), "tutor-1", start, end)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable against a busy interval, got %v", err)
	}
}

func TestValidate_UnlistedTutorNotFound(t *testing.T) {
	v := testValidator(nil)
	start := time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)
	err := v.Validate(context.Background(), "tutor-2", start, start.Add(time.Hour))
	if !errors.Is(err, ErrTutorNotFound) {
		t.Fatalf("expected ErrTutorNotFound, got %v", err)
	}
}

func TestValidate_NoAvailabilityConfigured(t *testing.T) {
	directory := stubDirectory{listed: map[string]bool{"tutor-3": true}}
	v := NewValidator(directory, stubAvailability{}, stubBusy{}).WithClock(func() time.Time {
		return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	})
	start := time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)
	err := v.Validate(context.Background(), "tutor-3", start, start.Add(time.Hour))
	if !errors.Is(err, ErrNoAvailability) {
		t.Fatalf("expected ErrNoAvailability, got %v", err)
	}
}

func TestValidate_DegenerateRange(t *testing.T) {
	v := testValidator(nil)
	at := time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)
	if err := v.Validate(context.Background(), "tutor-1", at, at); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for zero-length range, got %v", err)
	}
	if err := v.Validate(context.Background(), "tutor-1", at, at.Add(-time.Hour)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for inverted range, got %v", err)
	}
	if err := v.Validate(context.Background(), "tutor-1", at, at.Add(90*time.Second)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for sub-minute granularity, got %v", err)
	}
}

func TestValidate_PastSlotRejected(t *testing.T) {
	v := testValidator(nil)
	// A Monday before the fixed clock.
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	err := v.Validate(context.Background(), "tutor-1", start, start.Add(time.Hour))
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected past slot to be unavailable, got %v", err)
	}
}
