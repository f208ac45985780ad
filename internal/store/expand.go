package store

import (
	"sort"
	"time"

	"deskcal/internal/model"
)

// expandRange walks [start, end] (inclusive, by calendar day) and places
// every concrete occurrence of every event into its day bucket. Buckets
// exist for every day in range even when empty, keyed by midnight local.
//
// This is the single source of truth for "what happens on day D": the
// calendar grid and the reminder scanner both read it, so they can never
// disagree about which occurrences are live.
func expandRange(events []model.Event, start, end time.Time) map[time.Time][]model.Event {
	first := model.DayOf(start)
	last := model.DayOf(end)

	result := make(map[time.Time][]model.Event)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		result[day] = []model.Event{}
	}

	for _, e := range events {
		origin := model.DayOf(e.StartTime)

		if e.RepeatRule == model.RepeatNone {
			if bucket, ok := result[origin]; ok {
				result[origin] = append(bucket, e)
			}
			// An absolute reminder can land on a day other than the event's
			// own; surface the unmodified event there too so the reminder
			// scanner sees it without the user viewing the event's date.
			if e.ReminderType == model.ReminderAbsolute && !e.AbsoluteTime.IsZero() {
				remDay := model.DayOf(e.AbsoluteTime)
				if !remDay.Equal(origin) {
					if bucket, ok := result[remDay]; ok {
						result[remDay] = append(bucket, e)
					}
				}
			}
			continue
		}

		// Recurring: only days on/after the origin can qualify.
		from := first
		if origin.After(from) {
			from = origin
		}
		for day := from; !day.After(last); day = day.AddDate(0, 0, 1) {
			if !occursOn(e, day, origin) {
				continue
			}
			if day.Equal(origin) {
				result[day] = append(result[day], e)
			} else {
				result[day] = append(result[day], e.VirtualOn(day))
			}
		}
	}

	for day, bucket := range result {
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].Priority.Rank() != bucket[j].Priority.Rank() {
				return bucket[i].Priority.Rank() < bucket[j].Priority.Rank()
			}
			return bucket[i].StartTime.Before(bucket[j].StartTime)
		})
		result[day] = bucket
	}

	return result
}

// occursOn tests whether a recurring event occurs on day, given its
// origin day. Monthly rules have no end-of-month rollover: an event
// anchored on the 31st simply does not occur in shorter months.
func occursOn(e model.Event, day, origin time.Time) bool {
	if day.Before(origin) {
		return false
	}
	switch e.RepeatRule {
	case model.RepeatDaily:
		return true
	case model.RepeatWeekly:
		return day.Weekday() == origin.Weekday()
	case model.RepeatMonthly:
		return day.Day() == origin.Day()
	case model.RepeatYearly:
		return day.Month() == origin.Month() && day.Day() == origin.Day()
	default:
		return false
	}
}
