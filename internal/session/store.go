package session

import (
	"context"
	"sync"
	"time"
)

// Store is an in-memory session store with a per-entry idle TTL. The
// original conversation-state map grew without bound when guests abandoned
// a flow halfway; here a janitor evicts entries not touched within the TTL.
type Store[K comparable, V any] struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[K]entry[V]
}

type entry[V any] struct {
	value   V
	touched time.Time
}

// New creates a store whose entries expire after ttl of inactivity.
func New[K comparable, V any](ttl time.Duration) *Store[K, V] {
	return &Store[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the value for key, refreshing its TTL. Expired entries are
// treated as absent even if the janitor hasn't removed them yet.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || time.Since(e.touched) > s.ttl {
		var zero V
		delete(s.entries, key)
		return zero, false
	}

	e.touched = time.Now()
	s.entries[key] = e
	return e.value, true
}

// Set stores a value under key, resetting its TTL.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, touched: time.Now()}
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len returns the number of live entries, counting any not yet evicted.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor evicts expired entries every interval until ctx is
// cancelled. It blocks, so run it in its own goroutine.
func (s *Store[K, V]) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store[K, V]) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if time.Since(e.touched) > s.ttl {
			delete(s.entries, key)
		}
	}
}
