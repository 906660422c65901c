// Package cache provides the TTL-keyed store for computed stats results.
// Values are opaque bytes; the stats layer owns the encoding.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a TTL keyed value store safe for concurrent use by overlapping
// stats computations. Expired entries read as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process TTL store with lazy eviction.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	// Now is injected for testability.
	Now func() time.Time
}

// NewMemoryStore creates a memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

// Get returns the value for key if present and unexpired. Expired entries
// are evicted on read; there is no background sweep.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return nil, false, nil
	}
	if !s.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}

	copied := make([]byte, len(entry.value))
	copy(copied, entry.value)
	return copied, true, nil
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	copied := make([]byte, len(value))
	copy(copied, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		value:     copied,
		expiresAt: s.Now().Add(ttl),
	}
	return nil
}

// Ping reports store health.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close releases store resources.
func (s *MemoryStore) Close() error {
	return nil
}
