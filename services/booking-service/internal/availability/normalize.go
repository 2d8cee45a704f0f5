package availability

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Client payloads for availability grew several shapes over time: canonical
// minute offsets, "HH:mm" strings with a numeric weekday, and multi-block
// exception entries. The input types below are the tagged union of those
// shapes; normalization resolves them once, at the boundary, into the
// canonical types. Malformed entries are dropped, not raised: a partially
// valid payload degrades to its valid subset.

// WeeklyWindowInput is one weekly window in any accepted shape.
type WeeklyWindowInput struct {
	Day         string `json:"day,omitempty"`     // canonical: "MON".."SUN"
	Weekday     *int   `json:"weekday,omitempty"` // friendly: 0=Sunday .. 6=Saturday
	StartMinute *int   `json:"start_minute,omitempty"`
	EndMinute   *int   `json:"end_minute,omitempty"`
	Start       string `json:"start,omitempty"` // friendly: "HH:mm"
	End         string `json:"end,omitempty"`
}

// ExceptionInput is one exception entry in any accepted shape. Blocks, when
// present, carries zero or more windows for the date; an explicit empty list
// blocks the entire date.
type ExceptionInput struct {
	Date        string       `json:"date"`
	StartMinute *int         `json:"start_minute,omitempty"`
	EndMinute   *int         `json:"end_minute,omitempty"`
	Start       string       `json:"start,omitempty"`
	End         string       `json:"end,omitempty"`
	Blocks      []BlockInput `json:"blocks,omitempty"`
}

type BlockInput struct {
	StartMinute *int   `json:"start_minute,omitempty"`
	EndMinute   *int   `json:"end_minute,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
}

var clockPattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// parseClock converts a strict "HH:mm" string to minutes since midnight.
// "24:00" is permitted as a window end bound.
func parseClock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !clockPattern.MatchString(s) {
		return 0, false
	}
	sep := strings.IndexByte(s, ':')
	h, _ := strconv.Atoi(s[:sep])
	m, _ := strconv.Atoi(s[sep+1:])
	if m > 59 {
		return 0, false
	}
	total := h*60 + m
	if total > 24*60 {
		return 0, false
	}
	return total, true
}

func resolveMinute(explicit *int, clock string) (int, bool) {
	if explicit != nil {
		return *explicit, true
	}
	if clock != "" {
		return parseClock(clock)
	}
	return 0, false
}

// resolveRange resolves a pair of bounds from either minute offsets or clock
// strings, and enforces 0 <= start < end <= 1440.
func resolveRange(startMin, endMin *int, start, end string) (int, int, bool) {
	s, ok := resolveMinute(startMin, start)
	if !ok {
		return 0, 0, false
	}
	e, ok := resolveMinute(endMin, end)
	if !ok {
		return 0, 0, false
	}
	if s < 0 || e > 24*60 || e <= s {
		return 0, 0, false
	}
	return s, e, true
}

func resolveDay(token string, index *int) (Weekday, bool) {
	if token != "" {
		d := Weekday(strings.ToUpper(strings.TrimSpace(token)))
		return d, validWeekday(d)
	}
	if index != nil && *index >= 0 && *index <= 6 {
		return weekdayByIndex[*index], true
	}
	return "", false
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// NormalizeWeekly resolves weekly window inputs into canonical windows,
// dropping any entry that fails parsing or the ordering invariant.
func NormalizeWeekly(in []WeeklyWindowInput) []WeeklyWindow {
	out := make([]WeeklyWindow, 0, len(in))
	for _, w := range in {
		day, ok := resolveDay(w.Day, w.Weekday)
		if !ok {
			continue
		}
		start, end, ok := resolveRange(w.StartMinute, w.EndMinute, w.Start, w.End)
		if !ok {
			continue
		}
		out = append(out, WeeklyWindow{Day: day, StartMinute: start, EndMinute: end})
	}
	return out
}

// NormalizeExceptions flattens exception inputs, groups them by date, and
// merges each date's windows into the minimal disjoint sorted set. A merge of
// an already-merged set is a no-op. Dates are returned in ascending order.
//
// An entry carrying an explicit Blocks list marks its date as an exception
// even when no block parses: that date is then fully blocked.
func NormalizeExceptions(in []ExceptionInput) []ExceptionDay {
	byDate := map[string][]MinuteWindow{}
	present := map[string]bool{}
	for _, e := range in {
		date := strings.TrimSpace(e.Date)
		if !validDate(date) {
			continue
		}
		if e.Blocks != nil {
			present[date] = true
			for _, b := range e.Blocks {
				if s, end, ok := resolveRange(b.StartMinute, b.EndMinute, b.Start, b.End); ok {
					byDate[date] = append(byDate[date], MinuteWindow{StartMinute: s, EndMinute: end})
				}
			}
			continue
		}
		s, end, ok := resolveRange(e.StartMinute, e.EndMinute, e.Start, e.End)
		if !ok {
			continue
		}
		present[date] = true
		byDate[date] = append(byDate[date], MinuteWindow{StartMinute: s, EndMinute: end})
	}

	days := make([]ExceptionDay, 0, len(present))
	for date := range present {
		days = append(days, ExceptionDay{Date: date, Windows: MergeWindows(byDate[date])})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// MergeWindows sorts windows by start and coalesces overlapping or adjacent
// ones: a window merges into its predecessor when its start is <= the running
// end. The result is the minimal disjoint-interval representation.
func MergeWindows(wins []MinuteWindow) []MinuteWindow {
	if len(wins) == 0 {
		return nil
	}
	sorted := make([]MinuteWindow, len(wins))
	copy(sorted, wins)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartMinute != sorted[j].StartMinute {
			return sorted[i].StartMinute < sorted[j].StartMinute
		}
		return sorted[i].EndMinute < sorted[j].EndMinute
	})

	merged := []MinuteWindow{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.StartMinute <= last.EndMinute {
			if w.EndMinute > last.EndMinute {
				last.EndMinute = w.EndMinute
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
