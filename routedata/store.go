package routedata

import (
	"errors"
	"sync/atomic"
)

// ErrNoDataset is returned by Store.Current before the first snapshot swap.
var ErrNoDataset = errors.New("no dataset loaded")

// Store holds the current dataset snapshot behind an atomic pointer. Readers
// never block; a refresh replaces the whole snapshot in one swap, so every
// request sees either the old dataset or the new one, never a mix.
type Store struct {
	current atomic.Pointer[Dataset]
}

// NewStore returns an empty store. Swap must be called with the initial
// snapshot before Current can succeed.
func NewStore() *Store {
	return &Store{}
}

// Current returns the active snapshot.
func (s *Store) Current() (*Dataset, error) {
	d := s.current.Load()
	if d == nil {
		return nil, ErrNoDataset
	}
	return d, nil
}

// Swap installs a new snapshot and returns the previous one (nil on first
// install).
func (s *Store) Swap(d *Dataset) *Dataset {
	return s.current.Swap(d)
}

// Loaded reports whether a snapshot has been installed.
func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}
