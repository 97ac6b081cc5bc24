// Package settings holds the runtime-mutable bot settings behind a
// mutex-guarded store. Settings are read at every decision point rather
// than snapshotted at start, so an update applies to the next decision.
package settings

import (
	"errors"
	"sync"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

// ErrLocked is returned when a strategy or stake change is attempted while
// a trade is pending. Changing either mid-trade would race the settlement
// path; the original system disables those controls in the UI for the same
// reason.
var ErrLocked = errors.New("settings: strategy and stake are locked while a trade is pending")

// ErrInvalid is returned for settings that fail validation.
var ErrInvalid = errors.New("settings: invalid value")

// Store guards the current Settings.
type Store struct {
	mu       sync.RWMutex
	current  model.Settings
	tradeLck bool
}

// NewStore creates a Store with the given initial settings.
func NewStore(initial model.Settings) *Store {
	return &Store{current: initial}
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update replaces the settings. Stake must be positive and the strategy
// known; while the trade lock is held, changes to Strategy or Stake are
// rejected with ErrLocked (other fields still apply).
func (s *Store) Update(next model.Settings) error {
	if next.Stake <= 0 {
		return ErrInvalid
	}
	if !next.Strategy.Valid() {
		return ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tradeLck && (next.Strategy != s.current.Strategy || next.Stake != s.current.Stake) {
		return ErrLocked
	}
	s.current = next
	return nil
}

// SetTradeLock toggles the pending-trade lock. The engine holds the lock
// from open to settlement or cancellation.
func (s *Store) SetTradeLock(locked bool) {
	s.mu.Lock()
	s.tradeLck = locked
	s.mu.Unlock()
}
