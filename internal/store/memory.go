package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.ResponseCache.
type MemoryStore struct {
	mu sync.RWMutex

	// key: cache key, value: entry
	data map[string]memoryEntry

	// retention configuration
	maxEntries int           // max number of cached responses
	maxAge     time.Duration // optional upper bound on any entry's ttl

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]memoryEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Get returns the unexpired value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key and enforces retention.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.maxAge > 0 && (ttl <= 0 || ttl > s.maxAge) {
		ttl = s.maxAge
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memoryEntry{value: value, storedAt: now, expiresAt: now.Add(ttl)}

	// Enforce retention by age.
	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)
		}
	}

	// Enforce retention by count, evicting the oldest entries first.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range s.data {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey, oldest = k, e.storedAt
			}
		}
		delete(s.data, oldestKey)
	}
	return nil
}

// size returns the number of entries currently held, expired or not.
func (s *MemoryStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
