package ics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

// Vendor extension properties. Standard readers ignore them; we preserve
// them round-trip so the event file stays a valid calendar artifact.
const (
	propPriority        = ical.ComponentProperty("X-PRIORITY-LEVEL")
	propFinished        = ical.ComponentProperty("X-FINISHED")
	propReminderEnabled = ical.ComponentProperty("X-REMINDER-ENABLED")
	propReminderType    = ical.ComponentProperty("X-REMINDER-TYPE")
	propAdvanceValue    = ical.ComponentProperty("X-REMINDER-ADV-VAL")
	propAdvanceUnit     = ical.ComponentProperty("X-REMINDER-ADV-UNIT")
	propAbsoluteTime    = ical.ComponentProperty("X-REMINDER-ABS-TIME")
	propLastReminded    = ical.ComponentProperty("X-LAST-REMINDED")
)

const prodID = "-//deskcal//NONSGML v1.1//EN"

// icsTimeLayout is the floating local DATE-TIME form.
const icsTimeLayout = "20060102T150405"

// ToComponent renders e as a VEVENT with all proprietary fields carried
// as X- properties. Timestamps are truncated to minute precision.
func ToComponent(e model.Event) *ical.VEvent {
	ve := ical.NewEvent(e.UID)

	ve.SetProperty(ical.ComponentPropertySummary, e.Title)
	if e.Description != "" {
		ve.SetProperty(ical.ComponentPropertyDescription, e.Description)
	}
	ve.SetProperty(ical.ComponentPropertyDtStart, model.Minute(e.StartTime).Format(icsTimeLayout))
	ve.SetProperty(ical.ComponentPropertyDtEnd, model.Minute(e.EndTime).Format(icsTimeLayout))

	if r := RuleString(e.RepeatRule, e.StartTime); r != "" {
		ve.SetProperty(ical.ComponentPropertyRrule, r)
	}

	ve.SetProperty(propPriority, string(e.Priority))
	ve.SetProperty(propFinished, icsBool(e.Finished))
	ve.SetProperty(propReminderEnabled, icsBool(e.ReminderEnabled))
	ve.SetProperty(propReminderType, string(e.ReminderType))
	ve.SetProperty(propAdvanceValue, strconv.Itoa(e.AdvanceValue))
	ve.SetProperty(propAdvanceUnit, string(e.AdvanceUnit))
	if !e.AbsoluteTime.IsZero() {
		ve.SetProperty(propAbsoluteTime, model.FormatTime(e.AbsoluteTime))
	}
	if !e.LastReminded.IsZero() {
		ve.SetProperty(propLastReminded, model.FormatTime(e.LastReminded))
	}

	return ve
}

// FromComponent reads a VEVENT back into an Event. Missing or malformed
// optional fields fall back to defaults with a warning; ok is false only
// when the component is unusable (no UID or no parseable DTSTART), and
// the caller decides whether to discard it.
func FromComponent(ve *ical.VEvent) (model.Event, bool) {
	var e model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		appLog.Warn("ics: component without UID, discarding")
		return e, false
	}
	e.UID = uidProp.Value

	start, err := propTime(ve, ical.ComponentPropertyDtStart)
	if err != nil {
		appLog.Warn("ics: component without usable DTSTART, discarding", "uid", e.UID)
		return e, false
	}
	e.StartTime = start

	end, err := propTime(ve, ical.ComponentPropertyDtEnd)
	if err != nil {
		end = start
	}
	e.EndTime = end

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		e.Description = p.Value
	}

	e.RepeatRule = model.RepeatNone
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		e.RepeatRule = RuleFromString(p.Value)
	}

	e.Priority = model.ParsePriority(propValue(ve, string(propPriority)))
	e.Finished = propValue(ve, string(propFinished)) == "TRUE"
	e.ReminderEnabled = propValue(ve, string(propReminderEnabled)) == "TRUE"
	e.ReminderType = model.ParseReminderType(propValue(ve, string(propReminderType)))
	e.AdvanceValue = 30
	if v := propValue(ve, string(propAdvanceValue)); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			e.AdvanceValue = n
		} else {
			appLog.Warn("ics: bad advance value, using default", "uid", e.UID, "value", v)
		}
	}
	e.AdvanceUnit = model.ParseAdvanceUnit(propValue(ve, string(propAdvanceUnit)))
	e.AbsoluteTime = model.ParseTime(propValue(ve, string(propAbsoluteTime)))
	e.LastReminded = model.ParseTime(propValue(ve, string(propLastReminded)))

	return e, true
}

// RuleString maps a repeat rule to its RRULE value; weekly rules pin
// BYDAY to the origin weekday. Returns "" for RepeatNone.
func RuleString(rule model.RepeatRule, start time.Time) string {
	opt := rrule.ROption{}
	switch rule {
	case model.RepeatDaily:
		opt.Freq = rrule.DAILY
	case model.RepeatWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekday(start.Weekday())}
	case model.RepeatMonthly:
		opt.Freq = rrule.MONTHLY
	case model.RepeatYearly:
		opt.Freq = rrule.YEARLY
	default:
		return ""
	}
	return opt.RRuleString()
}

// RuleFromString maps an RRULE value back to a repeat rule, reducing any
// richer grammar to the five supported frequencies. Unparseable or
// unsupported rules degrade to RepeatNone with a warning.
func RuleFromString(s string) model.RepeatRule {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		appLog.Warn("ics: unparseable RRULE, treating as non-recurring", "rrule", s)
		return model.RepeatNone
	}
	switch opt.Freq {
	case rrule.DAILY:
		return model.RepeatDaily
	case rrule.WEEKLY:
		return model.RepeatWeekly
	case rrule.MONTHLY:
		return model.RepeatMonthly
	case rrule.YEARLY:
		return model.RepeatYearly
	default:
		appLog.Warn("ics: unsupported RRULE frequency, treating as non-recurring", "rrule", s)
		return model.RepeatNone
	}
}

// Encode renders the full event set as one calendar.
func Encode(events []model.Event) string {
	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetVersion("2.0")
	for _, e := range events {
		cal.AddVEvent(ToComponent(e))
	}
	return cal.Serialize()
}

// Decode parses a calendar payload. Unusable components are skipped, the
// rest are returned; IDs are left unassigned for the caller's backend.
func Decode(body []byte) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, comp := range cal.Events() {
		e, ok := FromComponent(comp)
		if !ok {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// ReadFile loads every usable event from the calendar file at path.
func ReadFile(path string) ([]model.Event, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// WriteFile writes the full event set to path atomically.
func WriteFile(path string, events []model.Event) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".deskcal-events-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(Encode(events)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func rruleWeekday(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

func icsBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func propValue(ve *ical.VEvent, name string) string {
	if p := ve.GetProperty(ical.ComponentProperty(name)); p != nil {
		return p.Value
	}
	return ""
}

// propTime reads a DATE-TIME property, accepting UTC, floating local and
// date-only forms. Zoned values keep their wall clock and become naive
// local times, matching how every other timestamp here is treated.
func propTime(ve *ical.VEvent, name ical.ComponentProperty) (time.Time, error) {
	p := ve.GetProperty(name)
	if p == nil || p.Value == "" {
		return time.Time{}, errors.New("missing property")
	}
	return parseICSTime(p.Value)
}

func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g. 20250101T090000Z: keep the wall clock, drop the zone.
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local), nil
	}

	// Floating local date-time, e.g. 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation(icsTimeLayout, v, time.Local)
	}

	// Date-only, e.g. 20250101
	return time.ParseInLocation("20060102", v, time.Local)
}
