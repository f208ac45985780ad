package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"deskcal/internal/config"
	"deskcal/internal/ics"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

const (
	eventsFileName = "Events.ics"
	eventsDBName   = "Events.db"
)

// backend is the persistence contract both storage modes satisfy. The
// Store mirrors whichever backend is active in an in-memory cache and
// rebuilds the cache on mode switch.
type backend interface {
	mode() string
	load() ([]model.Event, error)
	insert(e *model.Event) error
	insertBatch(events []model.Event) ([]model.Event, error)
	update(e model.Event) (bool, error)
	remove(id int64) (bool, error)
	replaceAll(events []model.Event) error
}

// Store owns the event set: CRUD, range queries through the occurrence
// expander, backend migration, ICS import/export, and the settings/memo
// document. All mutation is serialized; the scheduler's acknowledgement
// writes and UI writes go through the same lock.
type Store struct {
	mu sync.Mutex

	cfgPath string
	cfg     *config.Config
	dataDir string

	backend backend
	events  []model.Event
}

// Open loads the configuration document at cfgPath, opens the backend
// it selects, and fills the cache. Unreadable persisted state — config,
// event file or database alike — degrades to an empty store so the
// application always starts.
func Open(cfgPath string) (*Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		appLog.Warn("config unreadable, using defaults", "path", cfgPath, "err", err)
	}

	s := &Store{
		cfgPath: cfgPath,
		cfg:     cfg,
		dataDir: filepath.Dir(cfgPath),
	}

	s.backend = s.buildBackend(cfg.Settings.StorageMode)
	s.reload()
	return s, nil
}

// buildBackend cannot fail: both backends degrade internally when their
// persisted state is unreadable, so startup always yields a store.
func (s *Store) buildBackend(mode string) backend {
	switch mode {
	case config.ModeRelational:
		return openSqliteBackend(filepath.Join(s.dataDir, eventsDBName))
	default:
		return openFileBackend(filepath.Join(s.dataDir, eventsFileName))
	}
}

// reload rebuilds the cache from the active backend; read failures
// leave an empty cache per the recovery contract.
func (s *Store) reload() {
	events, err := s.backend.load()
	if err != nil {
		appLog.Error("backend read failed, treating as empty store", err, "mode", s.backend.mode())
		events = nil
	}
	s.events = events
}

// Mode returns the active storage mode.
func (s *Store) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.mode()
}

// Add assigns a fresh backend id (and a UID if the event has none),
// persists, and returns the id. Returns 0 and false on write failure.
func (s *Store) Add(e model.Event) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.UID == "" {
		e.UID = uuid.NewString()
	}
	e.Virtual = false

	if err := s.backend.insert(&e); err != nil {
		appLog.Error("add failed", err, "title", e.Title)
		return 0, false
	}
	s.events = append(s.events, e)
	return e.ID, true
}

// Update replaces the stored record matching e.ID, preserving UID and
// applying the reminder-reset invariants against the previously stored
// record: a changed start time or a newly enabled reminder clears
// LastReminded. Returns false if no such id exists.
func (s *Store) Update(e model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(e.ID)
	if idx < 0 {
		return false
	}
	stored := s.events[idx]

	e.UID = stored.UID
	e.Virtual = false
	if !model.SameClock(stored.StartTime, e.StartTime) {
		e.LastReminded = time.Time{}
	}
	if e.ReminderEnabled && !stored.ReminderEnabled {
		e.LastReminded = time.Time{}
	}

	ok, err := s.backend.update(e)
	if err != nil {
		appLog.Error("update failed", err, "id", e.ID)
		return false
	}
	if !ok {
		return false
	}
	s.events[idx] = e
	return true
}

// Delete removes the record matching id; no-op returning false if
// absent. Deletion is immediate and permanent.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	ok, err := s.backend.remove(id)
	if err != nil {
		appLog.Error("delete failed", err, "id", id)
		return false
	}
	if !ok {
		return false
	}
	s.events = append(s.events[:idx], s.events[idx+1:]...)
	return true
}

// Get returns the stored (origin) event for id.
func (s *Store) Get(id int64) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return model.Event{}, false
	}
	return s.events[idx], true
}

// ListAll returns a copy of the full event set, in backend order.
func (s *Store) ListAll() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// MarkFinished flips the completion flag of the stored series.
func (s *Store) MarkFinished(id int64, finished bool) bool {
	e, ok := s.Get(id)
	if !ok {
		return false
	}
	e.Finished = finished
	return s.Update(e)
}

// QueryRange expands every stored event into concrete per-day
// occurrences over [start, end] inclusive. Non-origin days of recurring
// events carry virtual copies; each day's list is sorted by (priority,
// start time). This is the primary read path for both the calendar grid
// and the reminder scanner.
func (s *Store) QueryRange(start, end time.Time) map[time.Time][]model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return expandRange(s.events, start, end)
}

// SwitchMode migrates every currently loaded event into the other
// backend, persists the new mode in the configuration document, and
// rebuilds the cache from the new backend. The old backend stays the
// source of truth until the copy completes; a mid-copy failure is
// returned without rollback.
func (s *Store) SwitchMode(newMode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch newMode {
	case config.ModeFile, config.ModeRelational:
	default:
		return fmt.Errorf("unknown storage mode %q", newMode)
	}
	if newMode == s.backend.mode() {
		return nil
	}

	nb := s.buildBackend(newMode)
	if err := nb.replaceAll(s.events); err != nil {
		return fmt.Errorf("migrate to %s: %w", newMode, err)
	}

	s.backend = nb
	s.cfg.Settings.StorageMode = newMode
	if err := s.cfg.Save(s.cfgPath); err != nil {
		appLog.Error("failed to persist storage mode", err, "mode", newMode)
	}
	s.reload()
	appLog.Info("storage mode switched", "mode", newMode, "events", len(s.events))
	return nil
}

// ImportICS parses an external calendar file and inserts every record
// whose UID is not already present, assigning fresh ids. Returns the
// number inserted; a malformed file or unreadable path yields 0.
// Duplicate UIDs within the imported file itself collapse to the first.
func (s *Store) ImportICS(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming, err := ics.ReadFile(path)
	if err != nil {
		appLog.Error("import failed", err, "path", path)
		return 0
	}

	known := make(map[string]bool, len(s.events))
	for _, e := range s.events {
		known[e.UID] = true
	}

	fresh := make([]model.Event, 0, len(incoming))
	for _, e := range incoming {
		if known[e.UID] {
			appLog.Debug("import: skipping existing uid", "uid", e.UID)
			continue
		}
		known[e.UID] = true
		e.ID = 0
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0
	}

	inserted, err := s.backend.insertBatch(fresh)
	if err != nil {
		// Partial failure: rows already committed stay; report them.
		appLog.Error("import partially failed", err, "inserted", len(inserted))
	}
	s.events = append(s.events, inserted...)
	appLog.Info("import completed", "path", path, "inserted", len(inserted), "skipped", len(incoming)-len(fresh))
	return len(inserted)
}

// ExportICS writes the full current event set to a calendar file at
// path, independent of the active backend mode.
func (s *Store) ExportICS(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ics.WriteFile(path, s.events)
}

// Settings returns a copy of the current settings block.
func (s *Store) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Settings
}

// UpdateSettings replaces the settings block and persists the document
// without rewriting the event store.
func (s *Store) UpdateSettings(settings config.Settings) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.Settings = settings
	if err := s.cfg.Save(s.cfgPath); err != nil {
		appLog.Error("failed to save settings", err, "path", s.cfgPath)
		return false
	}
	return true
}

// Memo returns the global free-text memo.
func (s *Store) Memo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.GlobalMemo
}

// SaveMemo persists the global memo (settings-only write).
func (s *Store) SaveMemo(memo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.GlobalMemo = memo
	if err := s.cfg.Save(s.cfgPath); err != nil {
		appLog.Error("failed to save memo", err, "path", s.cfgPath)
		return false
	}
	return true
}

func (s *Store) indexOf(id int64) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}
