package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Every mutation, including a
// pattern delete, happens under one write lock so readers never observe a
// partially applied pattern delete.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// IncrementWithTTL increments a fixed-window counter. The window starts with the first increment.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || entry.expired(now) {
		s.entries[key] = memoryEntry{value: []byte("1"), expiresAt: now.Add(window)}
		return 1, window, nil
	}

	current, _ := strconv.ParseInt(string(entry.value), 10, 64)
	current++
	entry.value = []byte(strconv.FormatInt(current, 10))
	if entry.expiresAt.IsZero() {
		entry.expiresAt = now.Add(window)
	}
	s.entries[key] = entry
	return current, entry.expiresAt.Sub(now), nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry until it is deleted.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Get returns a copy of the live value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || entry.expired(s.now()) {
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Delete removes keys, ignoring missing ones.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// DeleteByPattern removes all keys matching pattern in a single critical section.
// Expired entries that match are removed but not counted.
func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, entry := range s.entries {
		if !MatchPattern(pattern, key) {
			continue
		}
		if !entry.expired(now) {
			removed++
		}
		delete(s.entries, key)
	}
	return removed, nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]memoryEntry)
	return nil
}

// PurgeExpired removes expired entries and returns how many were dropped.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var purged int64
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
