package station

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store holds the active station for the whole process. Readers never see a
// half-applied update, and an update is only published once it is on disk.
type Store struct {
	path    string
	current atomic.Pointer[Station]
	mu      sync.Mutex
	changed chan struct{}
}

// NewStore loads the station at path. The store is always usable; a load
// error is returned so the caller can report it, with the defaults active.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	s := &Store{
		path:    path,
		changed: make(chan struct{}, 1),
	}

	st, err := Load(path)
	s.current.Store(&st)
	return s, err
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Get returns the current station
func (s *Store) Get() Station {
	return *s.current.Load()
}

// Update validates and saves st, then makes it current
func (s *Store) Update(st Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := Save(s.path, st); err != nil {
		return err
	}
	s.publish(st)
	slog.Info("Station updated", "stop_id", st.StopID, "label", st.Label)
	return nil
}

// Reload re-reads the backing file. On error the current station is kept.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := Load(s.path)
	if err != nil {
		return err
	}
	if st == s.Get() {
		return nil
	}
	s.publish(st)
	slog.Info("Station reloaded", "stop_id", st.StopID, "label", st.Label)
	return nil
}

// Changed receives after each Update and after a Reload that found a
// different station. Notifications coalesce when nobody is listening.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

func (s *Store) publish(st Station) {
	s.current.Store(&st)
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
