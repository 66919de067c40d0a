package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

var _ Store = (*Memory)(nil)

// Memory is a bounded in-process snapshot cache.
type Memory struct {
	entries *lru.Cache[string, *Entry]
	clock   Clock
}

// NewMemory creates an LRU cache holding at most size entries.
// A nil clock uses the wall clock.
func NewMemory(size int, clock Clock) (*Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memory cache size must be > 0 (got %d)", size)
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{entries: entries, clock: clockOrSystem(clock)}, nil
}

// Get returns a live entry. Expired entries are evicted and reported as a miss.
func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	k := key.String()
	entry, ok := m.entries.Get(k)
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	if entry.IsExpiredAt(m.clock.Now()) {
		m.entries.Remove(k)
		CacheEntries.WithLabelValues("memory").Set(float64(m.entries.Len()))
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return entry, nil
}

// Set stores entry unless it is already expired.
func (m *Memory) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.IsExpiredAt(m.clock.Now()) {
		return nil
	}
	m.entries.Add(key.String(), entry)
	CacheEntries.WithLabelValues("memory").Set(float64(m.entries.Len()))
	return nil
}

// Delete removes an entry.
func (m *Memory) Delete(_ context.Context, key Key) error {
	m.entries.Remove(key.String())
	CacheEntries.WithLabelValues("memory").Set(float64(m.entries.Len()))
	return nil
}

// Len returns the number of held entries, expired ones included.
func (m *Memory) Len() int {
	return m.entries.Len()
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.entries.Purge()
	CacheEntries.WithLabelValues("memory").Set(0)
}
