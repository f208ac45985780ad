package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, PriorityMedium.Rank(), Priority("bogus").Rank())
}

func TestParseFallbacks(t *testing.T) {
	assert.Equal(t, PriorityMedium, ParsePriority(""))
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, RepeatNone, ParseRepeatRule("fortnightly"))
	assert.Equal(t, RepeatWeekly, ParseRepeatRule("weekly"))
	assert.Equal(t, ReminderAdvance, ParseReminderType(""))
	assert.Equal(t, ReminderAbsolute, ParseReminderType("absolute"))
	assert.Equal(t, UnitMinutes, ParseAdvanceUnit("fortnights"))
	assert.Equal(t, UnitDays, ParseAdvanceUnit("days"))
}

func TestAdvanceUnitDuration(t *testing.T) {
	assert.Equal(t, 10*time.Minute, UnitMinutes.Duration(10))
	assert.Equal(t, 2*time.Hour, UnitHours.Duration(2))
	assert.Equal(t, 3*24*time.Hour, UnitDays.Duration(3))
}

func TestNewDefaults(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)
	e := New("Standup", start, start.Add(30*time.Minute))

	require.NotEmpty(t, e.UID)
	assert.Equal(t, PriorityMedium, e.Priority)
	assert.Equal(t, RepeatNone, e.RepeatRule)
	assert.Equal(t, ReminderAdvance, e.ReminderType)
	assert.Equal(t, 30, e.AdvanceValue)
	assert.Equal(t, UnitMinutes, e.AdvanceUnit)
	assert.False(t, e.ReminderEnabled)

	other := New("Standup", start, start.Add(30*time.Minute))
	assert.NotEqual(t, e.UID, other.UID)
}

func TestVirtualOn(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)
	e := New("Standup", start, start.Add(time.Hour))
	e.ID = 7
	e.RepeatRule = RepeatWeekly

	v := e.VirtualOn(time.Date(2025, 1, 20, 0, 0, 0, 0, time.Local))

	assert.True(t, v.Virtual)
	assert.Equal(t, e.ID, v.ID)
	assert.Equal(t, e.UID, v.UID)
	assert.Equal(t, time.Date(2025, 1, 20, 9, 0, 0, 0, time.Local), v.StartTime)
	assert.Equal(t, time.Date(2025, 1, 20, 10, 0, 0, 0, time.Local), v.EndTime)
	// The origin itself is untouched.
	assert.Equal(t, start, e.StartTime)
	assert.False(t, e.Virtual)
}

func TestTimeCodec(t *testing.T) {
	assert.Equal(t, "", FormatTime(time.Time{}))
	assert.True(t, ParseTime("").IsZero())
	assert.True(t, ParseTime("not a time").IsZero())

	at := time.Date(2025, 1, 6, 9, 4, 0, 0, time.Local)
	assert.Equal(t, "2025-01-06T09:04", FormatTime(at))
	assert.Equal(t, at, ParseTime("2025-01-06T09:04"))

	// Seconds and date-only variants from older files still parse.
	assert.Equal(t, time.Date(2025, 1, 6, 9, 4, 30, 0, time.Local), ParseTime("2025-01-06T09:04:30"))
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local), ParseTime("2025-01-06"))
}

func TestSameClock(t *testing.T) {
	a := time.Date(2025, 1, 6, 9, 4, 12, 0, time.Local)
	b := time.Date(2025, 1, 6, 9, 4, 59, 0, time.Local)
	assert.True(t, SameClock(a, b))
	assert.False(t, SameClock(a, b.Add(time.Minute)))
	assert.True(t, SameClock(time.Time{}, time.Time{}))
	assert.False(t, SameClock(a, time.Time{}))
}

func TestDayOf(t *testing.T) {
	at := time.Date(2025, 1, 6, 23, 59, 59, 0, time.Local)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local), DayOf(at))
}
