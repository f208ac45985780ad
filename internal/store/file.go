package store

import (
	"errors"
	"io/fs"

	"deskcal/internal/config"
	"deskcal/internal/ics"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

// fileBackend keeps the whole event set in one calendar file and
// rewrites it on every mutation. IDs come from a monotonic counter that
// resets at load (the file itself carries no internal ids).
type fileBackend struct {
	path   string
	events []model.Event
	nextID int64
}

func openFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, nextID: 1}

	events, err := ics.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("file store unreadable, starting empty", err, "path", path)
		}
		return b
	}

	for i := range events {
		events[i].ID = int64(i + 1)
	}
	b.events = events
	b.nextID = int64(len(events)) + 1
	return b
}

func (b *fileBackend) mode() string { return config.ModeFile }

func (b *fileBackend) load() ([]model.Event, error) {
	out := make([]model.Event, len(b.events))
	copy(out, b.events)
	return out, nil
}

func (b *fileBackend) insert(e *model.Event) error {
	e.ID = b.nextID
	b.nextID++
	b.events = append(b.events, *e)
	return b.persist()
}

// insertBatch defers persistence to a single write at the end; used by
// bulk import. The write is all-or-nothing: if it fails, no event of
// the batch is kept and no id is consumed.
func (b *fileBackend) insertBatch(events []model.Event) ([]model.Event, error) {
	staged := make([]model.Event, len(events))
	copy(staged, events)
	nextID := b.nextID
	for i := range staged {
		staged[i].ID = nextID
		nextID++
	}

	prev := b.events
	b.events = append(prev[:len(prev):len(prev)], staged...)
	if err := b.persist(); err != nil {
		b.events = prev
		return nil, err
	}
	b.nextID = nextID
	return staged, nil
}

func (b *fileBackend) update(e model.Event) (bool, error) {
	for i := range b.events {
		if b.events[i].ID == e.ID {
			b.events[i] = e
			return true, b.persist()
		}
	}
	return false, nil
}

func (b *fileBackend) remove(id int64) (bool, error) {
	for i := range b.events {
		if b.events[i].ID == id {
			b.events = append(b.events[:i], b.events[i+1:]...)
			return true, b.persist()
		}
	}
	return false, nil
}

// replaceAll swaps in a full event set, preserving incoming ids. Used by
// backend migration; the counter resumes past the highest id seen.
func (b *fileBackend) replaceAll(events []model.Event) error {
	b.events = make([]model.Event, len(events))
	copy(b.events, events)

	var maxID int64
	for _, e := range b.events {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	b.nextID = maxID + 1
	return b.persist()
}

func (b *fileBackend) persist() error {
	if err := ics.WriteFile(b.path, b.events); err != nil {
		appLog.Error("file store write failed", err, "path", b.path)
		return err
	}
	return nil
}
