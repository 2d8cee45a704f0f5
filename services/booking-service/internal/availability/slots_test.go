package availability

import (
	"reflect"
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
const testMonday = "2026-03-02"

func mondayNineToFive() []WeeklyWindow {
	return []WeeklyWindow{{Day: Monday, StartMinute: 540, EndMinute: 1020}}
}

func utcAt(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestGenerate_WeeklyBasic(t *testing.T) {
	slots := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          mondayNineToFive(),
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for i, s := range slots {
		wantStart := utcAt(9+i, 0)
		if !s.StartAt.Equal(wantStart) {
			t.Fatalf("slot %d: expected start %s, got %s", i, wantStart, s.StartAt)
		}
		if s.EndAt.Sub(s.StartAt) != time.Hour {
			t.Fatalf("slot %d: expected 60m duration, got %s", i, s.EndAt.Sub(s.StartAt))
		}
		if s.LocalDate != testMonday {
			t.Fatalf("slot %d: expected local date %s, got %s", i, testMonday, s.LocalDate)
		}
	}
	if slots[0].LocalStart != "09:00" || slots[7].LocalEnd != "17:00" {
		t.Fatalf("unexpected local rendering: first=%s last=%s", slots[0].LocalStart, slots[7].LocalEnd)
	}
}

func TestGenerate_BufferedBusyKnocksOutNeighbors(t *testing.T) {
	// Busy 12:00-13:00 with a 10 minute buffer blocks [11:50, 13:10): the
	// 11:00, 12:00, and 13:00 slots all intersect it.
	slots := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          mondayNineToFive(),
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		BufferMinutes:   10,
		Busy:            []Interval{{Start: utcAt(12, 0), End: utcAt(13, 0)}},
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	var starts []string
	for _, s := range slots {
		starts = append(starts, s.LocalStart)
	}
	want := []string{"09:00", "10:00", "14:00", "15:00", "16:00"}
	if !reflect.DeepEqual(starts, want) {
		t.Fatalf("expected starts %v, got %v", want, starts)
	}
	bufferedBusy := Interval{Start: utcAt(11, 50), End: utcAt(13, 10)}
	for _, s := range slots {
		if s.StartAt.Before(bufferedBusy.End) && bufferedBusy.Start.Before(s.EndAt) {
			t.Fatalf("slot %s intersects the buffered busy interval", s.LocalStart)
		}
	}
}

func TestGenerate_ExceptionReplacesWeekly(t *testing.T) {
	slots := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          mondayNineToFive(),
		Exceptions:      []ExceptionDay{{Date: testMonday, Windows: []MinuteWindow{{StartMinute: 840, EndMinute: 900}}}},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if len(slots) != 1 {
		t.Fatalf("expected the exception window only, got %d slots", len(slots))
	}
	if slots[0].LocalStart != "14:00" || slots[0].LocalEnd != "15:00" {
		t.Fatalf("expected the 14:00 slot, got %s-%s", slots[0].LocalStart, slots[0].LocalEnd)
	}
}

func TestGenerate_EmptyExceptionBlocksDay(t *testing.T) {
	slots := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          mondayNineToFive(),
		Exceptions:      []ExceptionDay{{Date: testMonday}},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if len(slots) != 0 {
		t.Fatalf("expected a fully blocked day, got %d slots", len(slots))
	}
}

func TestGenerate_WindowVersusDuration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Window exactly one duration long: one slot at the window start.
	exact := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          []WeeklyWindow{{Day: Monday, StartMinute: 540, EndMinute: 600}},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		Now:             now,
	})
	if len(exact) != 1 || exact[0].LocalStart != "09:00" {
		t.Fatalf("expected exactly the 09:00 slot, got %+v", exact)
	}

	// One minute short: nothing fits.
	short := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          []WeeklyWindow{{Day: Monday, StartMinute: 540, EndMinute: 599}},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		Now:             now,
	})
	if len(short) != 0 {
		t.Fatalf("expected no slots in a too-short window, got %+v", short)
	}
}

func TestGenerate_StepIndependentOfDuration(t *testing.T) {
	// 09:00-10:30 window, 30 minute grid, 60 minute slots: 09:00 and 09:30
	// fit, 10:00 would run past the window end.
	slots := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          []WeeklyWindow{{Day: Monday, StartMinute: 540, EndMinute: 630}},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 30,
		DurationMinutes: 60,
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].LocalStart != "09:00" || slots[1].LocalStart != "09:30" {
		t.Fatalf("unexpected starts: %s, %s", slots[0].LocalStart, slots[1].LocalStart)
	}
}

func TestGenerate_FiltersPastSlots(t *testing.T) {
	// Now is 12:30 on the generated day; only slots ending after now remain.
	slots := Generate(GenerateParams{
		Timezone:        "UTC",
		Weekly:          mondayNineToFive(),
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		Now:             utcAt(12, 30),
	})
	if len(slots) != 5 {
		t.Fatalf("expected 5 future slots, got %d", len(slots))
	}
	if slots[0].LocalStart != "12:00" {
		t.Fatalf("expected first surviving slot 12:00 (ends 13:00 > now), got %s", slots[0].LocalStart)
	}
}

func TestGenerate_LocalTimeConvertsToUTC(t *testing.T) {
	// 09:00 America/New_York in winter is 14:00 UTC.
	slots := Generate(GenerateParams{
		Timezone:        "America/New_York",
		Weekly:          []WeeklyWindow{{Day: Monday, StartMinute: 540, EndMinute: 600}},
		From:            "2026-01-26",
		To:              "2026-01-26",
		SlotSizeMinutes: 60,
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	want := time.Date(2026, 1, 26, 14, 0, 0, 0, time.UTC)
	if !slots[0].StartAt.Equal(want) {
		t.Fatalf("expected UTC start %s, got %s", want, slots[0].StartAt)
	}
	if slots[0].LocalStart != "09:00" || slots[0].LocalDate != "2026-01-26" {
		t.Fatalf("unexpected local rendering: %+v", slots[0])
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	params := GenerateParams{
		Timezone: "UTC",
		Weekly: []WeeklyWindow{
			{Day: Monday, StartMinute: 540, EndMinute: 720},
			{Day: Monday, StartMinute: 600, EndMinute: 780},
		},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		DurationMinutes: 60,
		Busy:            []Interval{{Start: utcAt(10, 0), End: utcAt(11, 0)}},
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	first := Generate(params)
	second := Generate(params)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different slot lists")
	}
}

func TestGenerate_InvalidInputsYieldEmpty(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []GenerateParams{
		{Timezone: "Mars/Olympus", Weekly: mondayNineToFive(), From: testMonday, To: testMonday, SlotSizeMinutes: 60, Now: now},
		{Timezone: "UTC", Weekly: mondayNineToFive(), From: testMonday, To: "2026-03-01", SlotSizeMinutes: 60, Now: now},
		{Timezone: "UTC", Weekly: mondayNineToFive(), From: "garbage", To: testMonday, SlotSizeMinutes: 60, Now: now},
		{Timezone: "UTC", Weekly: mondayNineToFive(), From: testMonday, To: testMonday, Now: now},
	}
	for i, p := range cases {
		if got := Generate(p); len(got) != 0 {
			t.Fatalf("case %d: expected no slots, got %d", i, len(got))
		}
	}
}

func TestGenerate_DefensiveWindowFilter(t *testing.T) {
	// The generator re-checks window bounds even though the normalizer
	// should have cleaned them.
	slots := Generate(GenerateParams{
		Timezone: "UTC",
		Weekly: []WeeklyWindow{
			{Day: Monday, StartMinute: 600, EndMinute: 540},
			{Day: Monday, StartMinute: -10, EndMinute: 60},
			{Day: Monday, StartMinute: 840, EndMinute: 900},
		},
		From:            testMonday,
		To:              testMonday,
		SlotSizeMinutes: 60,
		Now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if len(slots) != 1 || slots[0].LocalStart != "14:00" {
		t.Fatalf("expected only the valid window's slot, got %+v", slots)
	}
}
