package availability

import (
	"reflect"
	"testing"
)

func intp(v int) *int { return &v }

func TestNormalizeWeekly_AcceptedShapes(t *testing.T) {
	in := []WeeklyWindowInput{
		{Day: "MON", StartMinute: intp(540), EndMinute: intp(1020)},
		{Weekday: intp(0), Start: "09:00", End: "10:30"},
		{Day: "tue", Start: "08:00", End: "24:00"},
	}
	got := NormalizeWeekly(in)
	want := []WeeklyWindow{
		{Day: Monday, StartMinute: 540, EndMinute: 1020},
		{Day: Sunday, StartMinute: 540, EndMinute: 630},
		{Day: Tuesday, StartMinute: 480, EndMinute: 1440},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalized windows mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestNormalizeWeekly_DropsMalformed(t *testing.T) {
	in := []WeeklyWindowInput{
		{Day: "FUNDAY", StartMinute: intp(540), EndMinute: intp(600)},
		{Day: "MON", StartMinute: intp(600), EndMinute: intp(600)},
		{Day: "MON", StartMinute: intp(600), EndMinute: intp(540)},
		{Day: "MON", Start: "9am", End: "10:00"},
		{Day: "MON", Start: "09:75", End: "10:00"},
		{Weekday: intp(7), Start: "09:00", End: "10:00"},
		{Day: "MON", StartMinute: intp(-30), EndMinute: intp(60)},
		{Day: "MON", StartMinute: intp(540), EndMinute: intp(1500)},
		{Day: "WED", Start: "09:00", End: "17:00"},
	}
	got := NormalizeWeekly(in)
	if len(got) != 1 {
		t.Fatalf("expected only the valid WED window to survive, got %+v", got)
	}
	if got[0].Day != Wednesday || got[0].StartMinute != 540 || got[0].EndMinute != 1020 {
		t.Fatalf("unexpected surviving window: %+v", got[0])
	}
}

func TestNormalizeWeekly_CanonicalPassthrough(t *testing.T) {
	in := []WeeklyWindowInput{
		{Day: "FRI", StartMinute: intp(600), EndMinute: intp(720)},
	}
	first := NormalizeWeekly(in)
	again := NormalizeWeekly([]WeeklyWindowInput{
		{Day: string(first[0].Day), StartMinute: intp(first[0].StartMinute), EndMinute: intp(first[0].EndMinute)},
	})
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("canonical input changed under normalization: %+v vs %+v", first, again)
	}
}

func TestNormalizeExceptions_GroupsMergesAndSorts(t *testing.T) {
	in := []ExceptionInput{
		{Date: "2026-06-03", Start: "10:00", End: "11:00"},
		{Date: "2026-06-01", Blocks: []BlockInput{
			{StartMinute: intp(540), EndMinute: intp(660)},
			{StartMinute: intp(600), EndMinute: intp(720)},
			{StartMinute: intp(780), EndMinute: intp(840)},
		}},
		{Date: "2026-06-01", Start: "12:00", End: "13:00"},
	}
	got := NormalizeExceptions(in)
	// On 2026-06-01: 540-660 and 600-720 overlap, 12:00-13:00 bridges to
	// 780, and 780-840 is adjacent, so the whole day coalesces to 540-840.
	want := []ExceptionDay{
		{Date: "2026-06-01", Windows: []MinuteWindow{{StartMinute: 540, EndMinute: 840}}},
		{Date: "2026-06-03", Windows: []MinuteWindow{{StartMinute: 600, EndMinute: 660}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("exception days mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestNormalizeExceptions_EmptyBlocksBlocksDate(t *testing.T) {
	got := NormalizeExceptions([]ExceptionInput{
		{Date: "2026-06-01", Blocks: []BlockInput{}},
	})
	if len(got) != 1 {
		t.Fatalf("expected one exception day, got %+v", got)
	}
	if got[0].Date != "2026-06-01" || len(got[0].Windows) != 0 {
		t.Fatalf("expected a windowless day entry, got %+v", got[0])
	}
}

func TestNormalizeExceptions_DropsInvalid(t *testing.T) {
	got := NormalizeExceptions([]ExceptionInput{
		{Date: "June 1st", Start: "09:00", End: "10:00"},
		{Date: "2026-06-01", Start: "10:00", End: "09:00"},
		{Date: "2026-06-01"},
	})
	if len(got) != 0 {
		t.Fatalf("expected nothing to survive, got %+v", got)
	}
}

func TestMergeWindows_Idempotent(t *testing.T) {
	wins := []MinuteWindow{
		{StartMinute: 60, EndMinute: 120},
		{StartMinute: 100, EndMinute: 180},
		{StartMinute: 300, EndMinute: 360},
	}
	once := MergeWindows(wins)
	twice := MergeWindows(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge is not idempotent: %+v vs %+v", once, twice)
	}
	for i := 1; i < len(once); i++ {
		if once[i].StartMinute <= once[i-1].EndMinute {
			t.Fatalf("merged windows overlap or touch: %+v", once)
		}
	}
}
