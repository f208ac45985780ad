package store

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"deskcal/internal/config"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const eventsTable = "events"

var eventColumns = []string{
	"uid", "title", "description",
	"start_time", "end_time",
	"priority", "repeat_rule",
	"reminder_enabled", "reminder_type",
	"advance_value", "advance_unit", "absolute_time",
	"finished", "last_reminded_time",
}

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	uid                TEXT NOT NULL UNIQUE,
	title              TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	start_time         TEXT NOT NULL,
	end_time           TEXT NOT NULL,
	priority           TEXT NOT NULL DEFAULT 'medium',
	repeat_rule        TEXT NOT NULL DEFAULT 'none',
	reminder_enabled   INTEGER NOT NULL DEFAULT 0,
	reminder_type      TEXT NOT NULL DEFAULT 'advance',
	advance_value      INTEGER NOT NULL DEFAULT 30,
	advance_unit       TEXT NOT NULL DEFAULT 'minutes',
	absolute_time      TEXT,
	finished           INTEGER NOT NULL DEFAULT 0,
	last_reminded_time TEXT
)`

// eventRow is the relational form: booleans as 0/1, timestamps as
// ISO-8601 minute-precision text, absent timestamps as NULL.
type eventRow struct {
	ID              int64          `db:"id"`
	UID             string         `db:"uid"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	StartTime       string         `db:"start_time"`
	EndTime         string         `db:"end_time"`
	Priority        string         `db:"priority"`
	RepeatRule      string         `db:"repeat_rule"`
	ReminderEnabled int            `db:"reminder_enabled"`
	ReminderType    string         `db:"reminder_type"`
	AdvanceValue    int            `db:"advance_value"`
	AdvanceUnit     string         `db:"advance_unit"`
	AbsoluteTime    sql.NullString `db:"absolute_time"`
	Finished        int            `db:"finished"`
	LastReminded    sql.NullString `db:"last_reminded_time"`
}

func rowFromEvent(e model.Event) eventRow {
	return eventRow{
		ID:              e.ID,
		UID:             e.UID,
		Title:           e.Title,
		Description:     e.Description,
		StartTime:       model.FormatTime(e.StartTime),
		EndTime:         model.FormatTime(e.EndTime),
		Priority:        string(e.Priority),
		RepeatRule:      string(e.RepeatRule),
		ReminderEnabled: boolInt(e.ReminderEnabled),
		ReminderType:    string(e.ReminderType),
		AdvanceValue:    e.AdvanceValue,
		AdvanceUnit:     string(e.AdvanceUnit),
		AbsoluteTime:    nullTime(e.AbsoluteTime),
		Finished:        boolInt(e.Finished),
		LastReminded:    nullTime(e.LastReminded),
	}
}

// eventFromRow never fails: malformed cells fall back to field defaults
// with a warning, per the storage recovery contract.
func eventFromRow(r eventRow) model.Event {
	start := model.ParseTime(r.StartTime)
	if start.IsZero() {
		appLog.Warn("db: row with unparseable start_time, using zero", "id", r.ID, "value", r.StartTime)
	}
	end := model.ParseTime(r.EndTime)
	if end.IsZero() {
		end = start
	}
	return model.Event{
		ID:              r.ID,
		UID:             r.UID,
		Title:           r.Title,
		Description:     r.Description,
		StartTime:       start,
		EndTime:         end,
		Priority:        model.ParsePriority(r.Priority),
		RepeatRule:      model.ParseRepeatRule(r.RepeatRule),
		ReminderEnabled: r.ReminderEnabled != 0,
		ReminderType:    model.ParseReminderType(r.ReminderType),
		AdvanceValue:    r.AdvanceValue,
		AdvanceUnit:     model.ParseAdvanceUnit(r.AdvanceUnit),
		AbsoluteTime:    model.ParseTime(r.AbsoluteTime.String),
		Finished:        r.Finished != 0,
		LastReminded:    model.ParseTime(r.LastReminded.String),
	}
}

// sqliteBackend writes each mutation as an individual statement over a
// fresh short-lived connection, so scheduler writes and UI writes on
// overlapping ticks never contend for a held connection.
type sqliteBackend struct {
	path string
}

// openSqliteBackend never fails: an unusable database is logged and the
// backend degrades per the recovery contract (reads come back empty,
// writes report failure) so the application always starts.
func openSqliteBackend(path string) *sqliteBackend {
	b := &sqliteBackend{path: path}
	if err := b.ensureSchema(); err != nil {
		appLog.Error("relational store unusable, treating as empty", err, "path", path)
	}
	return b
}

func (b *sqliteBackend) ensureSchema() error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(createEventsTable)
	return err
}

func (b *sqliteBackend) open() (*sqlx.DB, error) {
	return sqlx.Connect("sqlite", b.path)
}

func (b *sqliteBackend) mode() string { return config.ModeRelational }

func (b *sqliteBackend) load() ([]model.Event, error) {
	db, err := b.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query, args, err := sq.Select(append([]string{"id"}, eventColumns...)...).
		From(eventsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []eventRow
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, eventFromRow(r))
	}
	return events, nil
}

func (b *sqliteBackend) insert(e *model.Event) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return b.insertOne(db, e)
}

func (b *sqliteBackend) insertOne(db *sqlx.DB, e *model.Event) error {
	r := rowFromEvent(*e)
	query, args, err := sq.Insert(eventsTable).
		Columns(eventColumns...).
		Values(r.UID, r.Title, r.Description,
			r.StartTime, r.EndTime,
			r.Priority, r.RepeatRule,
			r.ReminderEnabled, r.ReminderType,
			r.AdvanceValue, r.AdvanceUnit, r.AbsoluteTime,
			r.Finished, r.LastReminded).
		ToSql()
	if err != nil {
		return err
	}

	res, err := db.Exec(query, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// insertBatch inserts one statement per event; a mid-batch failure
// leaves earlier rows committed, which import accepts.
func (b *sqliteBackend) insertBatch(events []model.Event) ([]model.Event, error) {
	db, err := b.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	inserted := make([]model.Event, 0, len(events))
	for i := range events {
		if err := b.insertOne(db, &events[i]); err != nil {
			return inserted, err
		}
		inserted = append(inserted, events[i])
	}
	return inserted, nil
}

func (b *sqliteBackend) update(e model.Event) (bool, error) {
	db, err := b.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	r := rowFromEvent(e)
	query, args, err := sq.Update(eventsTable).
		Set("uid", r.UID).
		Set("title", r.Title).
		Set("description", r.Description).
		Set("start_time", r.StartTime).
		Set("end_time", r.EndTime).
		Set("priority", r.Priority).
		Set("repeat_rule", r.RepeatRule).
		Set("reminder_enabled", r.ReminderEnabled).
		Set("reminder_type", r.ReminderType).
		Set("advance_value", r.AdvanceValue).
		Set("advance_unit", r.AdvanceUnit).
		Set("absolute_time", r.AbsoluteTime).
		Set("finished", r.Finished).
		Set("last_reminded_time", r.LastReminded).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return false, err
	}

	res, err := db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *sqliteBackend) remove(id int64) (bool, error) {
	db, err := b.open()
	if err != nil {
		return false, err
	}
	defer db.Close()

	query, args, err := sq.Delete(eventsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// replaceAll clears the table and reinserts the set. Autoincrement
// assigns fresh ids; incoming ids are not preserved in this direction.
// The caller's slice is staged, not written through, so a failed
// migration leaves the in-memory view untouched.
func (b *sqliteBackend) replaceAll(events []model.Event) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer db.Close()

	query, _, err := sq.Delete(eventsTable).ToSql()
	if err != nil {
		return err
	}
	if _, err := db.Exec(query); err != nil {
		return err
	}

	staged := make([]model.Event, len(events))
	copy(staged, events)
	for i := range staged {
		if err := b.insertOne(db, &staged[i]); err != nil {
			return err
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: model.FormatTime(t), Valid: true}
}
