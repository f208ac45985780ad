package ics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskcal/internal/model"
)

func sampleEvent() model.Event {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)
	e := model.New("Standup", start, start.Add(30*time.Minute))
	e.Description = "daily sync, bring notes"
	e.Priority = model.PriorityHigh
	e.RepeatRule = model.RepeatWeekly
	e.ReminderEnabled = true
	e.ReminderType = model.ReminderAdvance
	e.AdvanceValue = 10
	e.AdvanceUnit = model.UnitMinutes
	e.Finished = false
	e.LastReminded = time.Date(2024, 12, 30, 8, 50, 0, 0, time.Local)
	return e
}

func assertEventEqual(t *testing.T, want, got model.Event) {
	t.Helper()
	assert.Equal(t, want.UID, got.UID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.True(t, model.SameClock(want.StartTime, got.StartTime), "start %v vs %v", want.StartTime, got.StartTime)
	assert.True(t, model.SameClock(want.EndTime, got.EndTime), "end %v vs %v", want.EndTime, got.EndTime)
	assert.Equal(t, want.Priority, got.Priority)
	assert.Equal(t, want.RepeatRule, got.RepeatRule)
	assert.Equal(t, want.ReminderEnabled, got.ReminderEnabled)
	assert.Equal(t, want.ReminderType, got.ReminderType)
	assert.Equal(t, want.AdvanceValue, got.AdvanceValue)
	assert.Equal(t, want.AdvanceUnit, got.AdvanceUnit)
	assert.True(t, model.SameClock(want.AbsoluteTime, got.AbsoluteTime))
	assert.Equal(t, want.Finished, got.Finished)
	assert.True(t, model.SameClock(want.LastReminded, got.LastReminded))
}

func TestRoundTripEveryRuleAndReminderType(t *testing.T) {
	rules := []model.RepeatRule{
		model.RepeatNone, model.RepeatDaily, model.RepeatWeekly,
		model.RepeatMonthly, model.RepeatYearly,
	}
	for _, rule := range rules {
		for _, rt := range []model.ReminderType{model.ReminderAdvance, model.ReminderAbsolute} {
			e := sampleEvent()
			e.RepeatRule = rule
			e.ReminderType = rt
			if rt == model.ReminderAbsolute {
				e.AbsoluteTime = time.Date(2025, 1, 6, 8, 45, 0, 0, time.Local)
			}

			got, ok := FromComponent(ToComponent(e))
			require.True(t, ok, "rule=%s type=%s", rule, rt)
			assertEventEqual(t, e, got)
		}
	}
}

func TestRoundTripThroughSerializedCalendar(t *testing.T) {
	e := sampleEvent()
	e.Finished = true

	events, err := Decode([]byte(Encode([]model.Event{e})))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assertEventEqual(t, e, events[0])
}

func TestRuleString(t *testing.T) {
	monday := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)

	assert.Equal(t, "", RuleString(model.RepeatNone, monday))
	assert.Equal(t, "FREQ=DAILY", RuleString(model.RepeatDaily, monday))
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", RuleString(model.RepeatWeekly, monday))
	assert.Equal(t, "FREQ=MONTHLY", RuleString(model.RepeatMonthly, monday))
	assert.Equal(t, "FREQ=YEARLY", RuleString(model.RepeatYearly, monday))

	saturday := time.Date(2025, 1, 11, 9, 0, 0, 0, time.Local)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=SA", RuleString(model.RepeatWeekly, saturday))
}

func TestRuleFromString(t *testing.T) {
	assert.Equal(t, model.RepeatDaily, RuleFromString("FREQ=DAILY"))
	assert.Equal(t, model.RepeatWeekly, RuleFromString("FREQ=WEEKLY;BYDAY=MO"))
	assert.Equal(t, model.RepeatMonthly, RuleFromString("FREQ=MONTHLY"))
	assert.Equal(t, model.RepeatYearly, RuleFromString("FREQ=YEARLY"))
	// Richer grammars reduce to the base frequency.
	assert.Equal(t, model.RepeatDaily, RuleFromString("FREQ=DAILY;INTERVAL=2"))
	assert.Equal(t, model.RepeatNone, RuleFromString("not an rrule"))
}

func TestDecodeSkipsUnusableComponents(t *testing.T) {
	payload := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:" + prodID + "\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:good-1\r\n" +
		"SUMMARY:kept\r\n" +
		"DTSTART:20250106T090000\r\n" +
		"DTEND:20250106T100000\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:bad-no-start\r\n" +
		"SUMMARY:dropped\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "good-1", events[0].UID)
	assert.Equal(t, "kept", events[0].Title)
}

func TestFromComponentDefaults(t *testing.T) {
	// A bare standard VEVENT (external calendar) gets field defaults.
	payload := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//other//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:external-1\r\n" +
		"SUMMARY:from elsewhere\r\n" +
		"DTSTART:20250320T120000Z\r\n" +
		"DTEND:20250320T130000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, model.PriorityMedium, e.Priority)
	assert.Equal(t, model.RepeatNone, e.RepeatRule)
	assert.False(t, e.ReminderEnabled)
	assert.Equal(t, model.ReminderAdvance, e.ReminderType)
	assert.Equal(t, 30, e.AdvanceValue)
	assert.Equal(t, model.UnitMinutes, e.AdvanceUnit)
	assert.True(t, e.AbsoluteTime.IsZero())
	assert.True(t, e.LastReminded.IsZero())
	// The UTC wall clock is kept as naive local.
	assert.Equal(t, time.Date(2025, 3, 20, 12, 0, 0, 0, time.Local), e.StartTime)
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Events.ics")

	a := sampleEvent()
	b := sampleEvent()
	b.Title = "Review"
	b.RepeatRule = model.RepeatNone

	require.NoError(t, WriteFile(path, []model.Event{a, b}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assertEventEqual(t, a, events[0])
	assertEventEqual(t, b, events[1])
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.ics"))
	assert.Error(t, err)
}
