package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders events within a day list and selects display color.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank maps priorities to sort order: high < medium < low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// ParsePriority falls back to medium for unknown values.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// RepeatRule is an infinite forward recurrence anchored at the event's
// start date. Only these five fixed frequencies exist.
type RepeatRule string

const (
	RepeatNone    RepeatRule = "none"
	RepeatDaily   RepeatRule = "daily"
	RepeatWeekly  RepeatRule = "weekly"
	RepeatMonthly RepeatRule = "monthly"
	RepeatYearly  RepeatRule = "yearly"
)

func ParseRepeatRule(s string) RepeatRule {
	switch RepeatRule(s) {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return RepeatRule(s)
	default:
		return RepeatNone
	}
}

type ReminderType string

const (
	ReminderAdvance  ReminderType = "advance"
	ReminderAbsolute ReminderType = "absolute"
)

func ParseReminderType(s string) ReminderType {
	if ReminderType(s) == ReminderAbsolute {
		return ReminderAbsolute
	}
	return ReminderAdvance
}

type AdvanceUnit string

const (
	UnitMinutes AdvanceUnit = "minutes"
	UnitHours   AdvanceUnit = "hours"
	UnitDays    AdvanceUnit = "days"
)

func ParseAdvanceUnit(s string) AdvanceUnit {
	switch AdvanceUnit(s) {
	case UnitMinutes, UnitHours, UnitDays:
		return AdvanceUnit(s)
	default:
		return UnitMinutes
	}
}

// Duration converts value x unit into a single offset.
func (u AdvanceUnit) Duration(value int) time.Duration {
	switch u {
	case UnitHours:
		return time.Duration(value) * time.Hour
	case UnitDays:
		return time.Duration(value) * 24 * time.Hour
	default:
		return time.Duration(value) * time.Minute
	}
}

// Event is the unit of scheduling. All timestamps are naive local
// wall-clock times; zero time means absent for AbsoluteTime and
// LastReminded.
type Event struct {
	// ID is unique within the active backend and assigned by it on
	// creation. UID is globally unique, assigned once, and preserved
	// across edits and backend migrations.
	ID  int64
	UID string

	Title       string
	Description string

	StartTime time.Time
	EndTime   time.Time

	Priority   Priority
	RepeatRule RepeatRule

	ReminderEnabled bool
	ReminderType    ReminderType
	AdvanceValue    int
	AdvanceUnit     AdvanceUnit
	AbsoluteTime    time.Time

	Finished     bool
	LastReminded time.Time

	// Virtual marks a recurrence-expanded copy. Virtual events share the
	// origin's ID and UID and are never written back to storage.
	Virtual bool
}

// New returns an event with a fresh UID and the entry-form defaults.
func New(title string, start, end time.Time) Event {
	return Event{
		UID:          uuid.NewString(),
		Title:        title,
		StartTime:    start,
		EndTime:      end,
		Priority:     PriorityMedium,
		RepeatRule:   RepeatNone,
		ReminderType: ReminderAdvance,
		AdvanceValue: 30,
		AdvanceUnit:  UnitMinutes,
	}
}

// VirtualOn returns the detached copy of e for the given occurrence day,
// with start/end shifted by the whole-day delta from the origin date.
func (e Event) VirtualOn(day time.Time) Event {
	delta := DayOf(day).Sub(DayOf(e.StartTime))
	v := e
	v.StartTime = e.StartTime.Add(delta)
	v.EndTime = e.EndTime.Add(delta)
	v.Virtual = true
	return v
}

// TimeLayout is the persisted timestamp form for both storage backends:
// ISO-8601 at minute precision, no zone.
const TimeLayout = "2006-01-02T15:04"

// FormatTime renders t at minute precision; zero renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// ParseTime accepts the persisted minute form plus the with-seconds and
// date-only variants older files may contain. Unparseable input yields
// the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{TimeLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Minute truncates t to minute precision, the granularity every
// persisted timestamp and reminder trigger uses.
func Minute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// DayOf returns midnight local of t's calendar day; query_range buckets
// are keyed by these values.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameClock reports whether two timestamps are equal at minute
// precision, treating zero values as equal only to each other.
func SameClock(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return Minute(a).Equal(Minute(b))
}
