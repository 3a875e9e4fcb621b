package state

import (
	"fmt"
	"sync"
	"time"
)

// offlineAfter is the number of failed sync rounds before the backend is
// considered unreachable.
const offlineAfter = 2

// Snapshot is the latest connectivity view shared with the UI.
type Snapshot struct {
	LastSync time.Time // last successful round
	LastTry  time.Time
	// Revalidated counts entries refreshed by the last successful round.
	Revalidated         int
	LastError           error
	ConsecutiveFailures int
}

// IsOffline reports whether the backend has been unreachable for several
// rounds in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= offlineAfter
}

// Synced reports whether at least one round has succeeded.
func (s Snapshot) Synced() bool {
	return !s.LastSync.IsZero()
}

// Store records the outcome of background sync rounds.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// NewStore returns a Store using clock for timestamps; nil means time.Now.
func NewStore(clock func() time.Time) *Store {
	return &Store{now: clock}
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Record stores the result of one round. On error the previous success time
// is kept and the failure counter grows; success resets it.
func (s *Store) Record(revalidated int, err error) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.snapshot.LastTry = now
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return s.copyLocked()
	}

	s.snapshot.LastSync = now
	s.snapshot.Revalidated = revalidated
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	return s.copyLocked()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
