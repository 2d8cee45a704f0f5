package availability

import (
	"sort"
	"time"
)

// Slot is a concrete bookable interval of exactly the requested duration.
// StartAt/EndAt are UTC instants; the Local* fields carry the tutor-local
// rendering for display.
type Slot struct {
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Timezone   string    `json:"timezone"`
	LocalDate  string    `json:"local_date"`  // YYYY-MM-DD
	LocalStart string    `json:"local_start"` // HH:mm
	LocalEnd   string    `json:"local_end"`
}

// GenerateParams are the inputs to Generate. From and To are inclusive
// calendar dates (YYYY-MM-DD) in the tutor's timezone. DurationMinutes
// defaults to SlotSizeMinutes when zero. Now is the caller's clock; slots
// ending at or before Now are never emitted.
type GenerateParams struct {
	Timezone        string
	Weekly          []WeeklyWindow
	Exceptions      []ExceptionDay
	From            string
	To              string
	SlotSizeMinutes int
	DurationMinutes int
	BufferMinutes   int
	Busy            []Interval
	Now             time.Time
}

// Generate enumerates every bookable slot in [From, To].
//
// Slots of DurationMinutes are placed on a grid stepped by SlotSizeMinutes
// from each window's start; the two are independent, and a window is
// exhausted once no full-duration slot fits before its end. Local-time
// arithmetic happens in the tutor's IANA zone so daylight-saving transitions
// are the zone database's problem; only the comparisons against Now and the
// busy set use absolute time.
//
// A date with an exception entry uses the exception windows exclusively, so
// an exception day with zero windows yields zero slots for that date.
// Overlapping source windows are iterated independently and may emit
// overlapping candidates; Generate does not deduplicate across windows.
//
// Invalid inputs (unknown zone, malformed or inverted date range, zero step)
// resolve to an empty result: "no slots" is a representable outcome, not an
// error.
func Generate(p GenerateParams) []Slot {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil || p.SlotSizeMinutes <= 0 {
		return nil
	}
	duration := p.DurationMinutes
	if duration <= 0 {
		duration = p.SlotSizeMinutes
	}

	from, err := time.ParseInLocation("2006-01-02", p.From, loc)
	if err != nil {
		return nil
	}
	to, err := time.ParseInLocation("2006-01-02", p.To, loc)
	if err != nil || to.Before(from) {
		return nil
	}

	// Defensive re-filter: the normalizer should have cleaned these already,
	// but the generator never trusts its window inputs.
	weeklyByDay := map[Weekday][]MinuteWindow{}
	for _, w := range p.Weekly {
		if !validMinuteWindow(w.StartMinute, w.EndMinute) {
			continue
		}
		weeklyByDay[w.Day] = append(weeklyByDay[w.Day], MinuteWindow{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
	}
	exceptionByDate := map[string][]MinuteWindow{}
	for _, d := range p.Exceptions {
		wins := make([]MinuteWindow, 0, len(d.Windows))
		for _, w := range d.Windows {
			if validMinuteWindow(w.StartMinute, w.EndMinute) {
				wins = append(wins, w)
			}
		}
		// Present-but-empty entries matter: they block the date.
		exceptionByDate[d.Date] = wins
	}

	buffer := time.Duration(p.BufferMinutes) * time.Minute
	busy := make([]Interval, 0, len(p.Busy))
	for _, b := range p.Busy {
		if !b.End.After(b.Start) {
			continue
		}
		busy = append(busy, Interval{Start: b.Start.Add(-buffer), End: b.End.Add(buffer)})
	}

	durationD := time.Duration(duration) * time.Minute
	var slots []Slot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		windows, isException := exceptionByDate[date]
		if !isException {
			windows = weeklyByDay[weekdayToken(day.Weekday())]
		}

		for _, win := range windows {
			for startMin := win.StartMinute; startMin+duration <= win.EndMinute; startMin += p.SlotSizeMinutes {
				start := time.Date(day.Year(), day.Month(), day.Day(), 0, startMin, 0, 0, loc)
				end := start.Add(durationD)
				if !end.After(p.Now) {
					continue
				}
				if overlapsAny(start, end, busy) {
					continue
				}
				slots = append(slots, Slot{
					StartAt:    start.UTC(),
					EndAt:      end.UTC(),
					Timezone:   p.Timezone,
					LocalDate:  date,
					LocalStart: start.In(loc).Format("15:04"),
					LocalEnd:   end.In(loc).Format("15:04"),
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartAt.Before(slots[j].StartAt) })
	return slots
}

func validMinuteWindow(start, end int) bool {
	return start >= 0 && end <= 24*60 && end > start
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
