// Package cache provides a small in-memory get-or-compute store with
// per-entry expiry. It backs the analyzer's result memoization so repeated
// uploads of the same document skip the upstream call within the TTL window.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Store is a mutex-guarded in-memory TTL cache.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is swapped out in tests.
	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// GetOrCompute returns the cached value for key when present and unexpired,
// otherwise runs compute and caches its result for ttl. Compute errors are
// never cached. Concurrent callers for the same missing key may compute more
// than once; the last write wins.
func (s *Store) GetOrCompute(key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.now().Before(e.expiresAt) {
		s.mu.Unlock()
		return e.value, nil
	}
	delete(s.entries, key)
	s.mu.Unlock()

	value, err := compute()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()

	return value, nil
}

// Len reports how many entries are currently stored, including expired ones
// not yet evicted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
