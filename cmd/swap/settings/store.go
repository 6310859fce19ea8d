package settings

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store holds the current settings. Readers call Current on every decision;
// writers go through Update, which persists the change.
type Store struct {
	path    string
	log     *slog.Logger
	current atomic.Pointer[Settings]
	writeMu sync.Mutex
}

// Open loads settings from path into a new Store. A nil logger means
// slog.Default().
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	st := &Store{path: path, log: log}
	st.current.Store(s)
	return st, nil
}

// NewMemoryStore returns a Store that is never written to disk.
func NewMemoryStore(s *Settings) *Store {
	if s == nil {
		s = DefaultSettings()
	}
	st := &Store{log: slog.Default()}
	st.current.Store(s)
	return st
}

func (st *Store) Path() string {
	return st.path
}

// Current returns the active settings. The value must not be modified.
func (st *Store) Current() *Settings {
	return st.current.Load()
}

// Reload re-reads the settings file. On error the previous settings stay in
// effect.
func (st *Store) Reload() error {
	if st.path == "" {
		return nil
	}
	s, err := Load(st.path)
	if err != nil {
		st.log.Warn("failed to reload settings, keeping previous", "path", st.path, "error", err)
		return err
	}
	st.current.Store(s)
	st.log.Debug("reloaded settings", "path", st.path)
	return nil
}

// Update applies f to a copy of the current settings, publishes it and saves
// it.
func (st *Store) Update(f func(s *Settings)) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()

	next := st.Current().Clone()
	f(next)
	next.NativeInsteadPercent = ClampPercent(next.NativeInsteadPercent)
	st.current.Store(next)
	return st.saveLocked(next)
}

// Save writes the current settings to disk.
func (st *Store) Save() error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	return st.saveLocked(st.Current())
}

func (st *Store) saveLocked(s *Settings) error {
	if st.path == "" {
		return nil
	}
	return Save(st.path, s)
}
