package config

import (
	"sync"
	"sync/atomic"
)

// ChangeFunc is notified after the settings have been replaced.
type ChangeFunc func(old, next *Settings)

// Store is the single update entry point for runtime settings. Readers get
// an immutable snapshot, so a tick that loaded its settings keeps using
// them even if an update lands mid-tick.
type Store struct {
	current atomic.Pointer[Settings]

	mu        sync.Mutex
	listeners []ChangeFunc
}

// NewStore creates a Store holding initial.
func NewStore(initial *Settings) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the active settings. Callers must not modify the result.
func (s *Store) Current() *Settings {
	return s.current.Load()
}

// OnChange registers fn to be called after every successful Replace.
// Listeners run synchronously, in registration order, and must not call
// Replace themselves.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Replace validates next and atomically swaps it in, then notifies listeners.
// next must not be modified afterwards.
func (s *Store) Replace(next *Settings) error {
	applyDefaults(next)
	if err := Validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.current.Swap(next)
	for _, fn := range s.listeners {
		fn(old, next)
	}
	return nil
}

// Reload loads path and replaces the current settings with it.
func (s *Store) Reload(path string) error {
	next, err := Load(path)
	if err != nil {
		return err
	}
	return s.Replace(next)
}
