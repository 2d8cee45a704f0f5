// Package availability holds the pure scheduling core: normalization of
// tutor-supplied availability payloads into a canonical representation, and
// generation of concrete bookable slots from that representation.
//
// Nothing in this package performs I/O. All wall-clock input is explicit.
package availability

import "time"

// Weekday is a day-of-week token. Tokens rather than ints keep stored rows
// unambiguous about which day-numbering convention produced them.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

// weekdayByIndex maps the friendly input convention (0=Sunday .. 6=Saturday,
// matching time.Weekday) to tokens.
var weekdayByIndex = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func weekdayToken(d time.Weekday) Weekday {
	return weekdayByIndex[int(d)]
}

func validWeekday(d Weekday) bool {
	for _, t := range weekdayByIndex {
		if t == d {
			return true
		}
	}
	return false
}

// WeeklyWindow is a recurring open interval in the tutor's local timezone,
// expressed as minutes since local midnight. Invariant: 0 <= StartMinute <
// EndMinute <= 1440.
type WeeklyWindow struct {
	Day         Weekday `json:"day"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
}

// MinuteWindow is an open minute interval within a single day.
type MinuteWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// ExceptionDay overrides weekly availability for one calendar date. Windows
// are disjoint and sorted. An ExceptionDay with zero windows blocks the whole
// date: the date is present, so weekly windows do not apply, and nothing is
// offered in their place.
type ExceptionDay struct {
	Date    string         `json:"date"` // YYYY-MM-DD in the tutor's timezone
	Windows []MinuteWindow `json:"windows"`
}

// TutorAvailability is the canonical availability document for one tutor.
type TutorAvailability struct {
	TutorID         string         `json:"tutor_id"`
	Timezone        string         `json:"timezone"`
	SlotSizeMinutes int            `json:"slot_size_minutes"`
	BufferMinutes   int            `json:"buffer_minutes"`
	Weekly          []WeeklyWindow `json:"weekly"`
	Exceptions      []ExceptionDay `json:"exceptions"`
}

// Interval is an absolute time interval, half-open [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

const (
	MinSlotSizeMinutes = 15
	MaxSlotSizeMinutes = 240
	MinBufferMinutes   = 0
	MaxBufferMinutes   = 60
)

func ValidSlotSize(mins int) bool {
	return mins >= MinSlotSizeMinutes && mins <= MaxSlotSizeMinutes
}

func ValidBuffer(mins int) bool {
	return mins >= MinBufferMinutes && mins <= MaxBufferMinutes
}
