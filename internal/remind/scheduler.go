package remind

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	appLog "deskcal/internal/log"
	"deskcal/internal/model"
	"deskcal/internal/store"
)

const (
	// DefaultInterval is the poll period between reminder scans.
	DefaultInterval = 30 * time.Second

	// lookaheadDays bounds the expansion window per tick; advance
	// reminders up to 30 days out stay actionable without unbounded
	// query cost.
	lookaheadDays = 30
)

// Scheduler polls the store at a fixed interval and emits reminders
// whose trigger instant has passed and has not been acknowledged. It
// also signals day rollover so the UI can redraw "today".
type Scheduler struct {
	store    *store.Store
	interval time.Duration

	cron  *cron.Cron
	entry cron.EntryID

	// now is the clock; tests swap it.
	now func() time.Time

	lastDate time.Time

	onReminder  func(model.Event)
	onDayChange func()
}

// New builds a scheduler with the given poll interval; zero or negative
// means DefaultInterval.
func New(st *store.Store, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		store:    st,
		interval: interval,
		now:      time.Now,
	}
	s.lastDate = model.DayOf(s.now())
	return s
}

// OnReminder registers the notification consumer. The emitted event is
// always the origin stored record, never a virtual copy.
func (s *Scheduler) OnReminder(fn func(model.Event)) { s.onReminder = fn }

// OnDayChange registers the day-rollover consumer.
func (s *Scheduler) OnDayChange(fn func()) { s.onDayChange = fn }

// Start begins polling. Tick failures are logged and never stop the
// timer.
func (s *Scheduler) Start() error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	id, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick)
	if err != nil {
		return err
	}
	s.cron = c
	s.entry = id
	c.Start()
	appLog.Info("reminder scheduler started", "interval", s.interval)
	return nil
}

// Stop halts polling; a tick in flight completes.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	appLog.Info("reminder scheduler stopped")
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("reminder tick panicked", fmt.Errorf("%v", r))
		}
	}()
	s.Check(s.now())
}

type firedKey struct {
	id      int64
	trigger time.Time
}

// Check runs one poll tick at the given instant: day-rollover
// detection, a [today, today+30d] expansion, and trigger evaluation for
// every occurrence. Exposed for tests and for a forced initial scan.
func (s *Scheduler) Check(now time.Time) {
	today := model.DayOf(now)
	if !today.Equal(s.lastDate) {
		s.lastDate = today
		if s.onDayChange != nil {
			s.onDayChange()
		}
	}

	window := s.store.QueryRange(today, today.AddDate(0, 0, lookaheadDays))

	days := make([]time.Time, 0, len(window))
	for day := range window {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	fired := make(map[firedKey]bool)
	for _, day := range days {
		for _, occ := range window[day] {
			if occ.Finished || !occ.ReminderEnabled {
				continue
			}
			trigger := TriggerInstant(occ)
			if trigger.IsZero() {
				continue
			}
			if now.Before(trigger) {
				continue
			}
			// A stale LastReminded from a prior occurrence compares as
			// earlier than this occurrence's recomputed trigger, so the
			// next occurrence of a recurring event fires again.
			if !occ.LastReminded.IsZero() && !occ.LastReminded.Before(trigger) {
				continue
			}

			key := firedKey{id: occ.ID, trigger: trigger}
			if fired[key] {
				continue
			}
			fired[key] = true

			origin, ok := s.store.Get(occ.ID)
			if !ok {
				appLog.Warn("reminder origin vanished, skipping", "id", occ.ID)
				continue
			}
			if s.onReminder != nil {
				s.onReminder(origin)
			}
		}
	}
}

// TriggerInstant computes when an occurrence's reminder fires, truncated
// to minute precision: the absolute time, or start minus the advance
// offset. Zero when no trigger is defined.
func TriggerInstant(e model.Event) time.Time {
	switch e.ReminderType {
	case model.ReminderAbsolute:
		if e.AbsoluteTime.IsZero() {
			return time.Time{}
		}
		return model.Minute(e.AbsoluteTime)
	default:
		if e.StartTime.IsZero() {
			return time.Time{}
		}
		return model.Minute(e.StartTime.Add(-e.AdvanceUnit.Duration(e.AdvanceValue)))
	}
}

// Acknowledge records that the reminder for id was shown and dismissed:
// the origin's LastReminded is stamped to now and persisted, which
// stops the current occurrence from re-firing while leaving future
// occurrences (with later triggers) eligible.
func (s *Scheduler) Acknowledge(id int64) bool {
	origin, ok := s.store.Get(id)
	if !ok {
		return false
	}
	origin.LastReminded = s.now()
	return s.store.Update(origin)
}

// Snooze defers the reminder for id by the given number of minutes.
//
// For a recurring event the series must not be touched: a one-shot
// shadow event is inserted with an absolute reminder at now+minutes,
// and the origin only gets its LastReminded stamped so the current
// occurrence stops re-firing. For a non-recurring event the event
// itself flips to an absolute reminder at now+minutes and clears
// LastReminded so it fires again.
func (s *Scheduler) Snooze(id int64, minutes int) bool {
	origin, ok := s.store.Get(id)
	if !ok {
		return false
	}

	at := model.Minute(s.now()).Add(time.Duration(minutes) * time.Minute)

	if origin.RepeatRule != model.RepeatNone {
		shadow := origin
		shadow.ID = 0
		shadow.UID = ""
		shadow.Title = origin.Title + " (snoozed)"
		shadow.RepeatRule = model.RepeatNone
		shadow.ReminderEnabled = true
		shadow.ReminderType = model.ReminderAbsolute
		shadow.AbsoluteTime = at
		shadow.LastReminded = time.Time{}
		shadow.Finished = false
		if _, ok := s.store.Add(shadow); !ok {
			return false
		}

		origin.LastReminded = s.now()
		return s.store.Update(origin)
	}

	origin.ReminderType = model.ReminderAbsolute
	origin.AbsoluteTime = at
	origin.LastReminded = time.Time{}
	return s.store.Update(origin)
}
