// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("cache backend closed")

// DefaultCleanupInterval is how often Memory sweeps expired entries.
const DefaultCleanupInterval = time.Minute

// memoryEntry is a stored value with its absolute expiry. A zero expiresAt
// never expires.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// Memory is a process-local Backend backed by a map.
//
// Values are copied on Set and Get, so callers may reuse their buffers.
// Expired entries are dropped lazily on Get and by a background sweep
// every cleanup interval.
//
// Thread Safety:
//   - Safe for concurrent access from multiple goroutines
//   - Entries are guarded by a sync.RWMutex, stats by a separate mutex
//
// Example:
//
//	m := cache.NewMemory(time.Minute)
//	defer m.Close()
//	_ = m.Set(ctx, "user_rec:u1:ab12", payload, 10*time.Minute)
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	statsMu sync.Mutex
	stats   Stats

	now func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewMemory creates a Memory backend and starts its cleanup goroutine.
// A non-positive interval uses DefaultCleanupInterval.
func NewMemory(cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	m.stats.LastCleanup = m.now()
	go m.cleanupLoop(cleanupInterval)
	return m
}

// Get returns a copy of the value stored under key.
// An expired entry is removed and reported as not found.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, false, ErrClosed
	}
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.record(func(s *Stats) { s.Misses++ })
		return nil, false, nil
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		// Re-check: the key may have been rewritten since the read lock was dropped.
		if cur, still := m.entries[key]; still && cur.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		m.record(func(s *Stats) { s.Misses++; s.Evictions++ })
		return nil, false, nil
	}

	m.record(func(s *Stats) { s.Hits++ })
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set stores a copy of value under key, overwriting any previous value.
// A non-positive ttl stores the entry without expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.entries[key] = entry
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.record(func(s *Stats) { s.TotalKeys = total })
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	_, existed := m.entries[key]
	delete(m.entries, key)
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.record(func(s *Stats) {
		if existed {
			s.Evictions++
		}
		s.TotalKeys = total
	})
	return nil
}

// DeleteMatching removes every key matching pattern and returns the number
// of live entries removed. Expired matches are dropped but not counted.
func (m *Memory) DeleteMatching(_ context.Context, pattern string) (int, error) {
	now := m.now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	removed, evicted := 0, int64(0)
	for key, entry := range m.entries {
		if !MatchPattern(pattern, key) {
			continue
		}
		if !entry.expired(now) {
			removed++
		}
		delete(m.entries, key)
		evicted++
	}
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.record(func(s *Stats) {
		s.Evictions += evicted
		s.TotalKeys = total
	})
	return removed, nil
}

// Ping reports whether the backend is open.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// GetStats returns a snapshot of the cache counters.
func (m *Memory) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// HitRate returns the hit rate as a percentage.
func (m *Memory) HitRate() float64 {
	stats := m.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Close stops the cleanup goroutine and drops all entries.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		m.closed = true
		m.entries = make(map[string]memoryEntry)
		m.mu.Unlock()
	})
	return nil
}

// cleanupLoop periodically removes expired entries until Close.
func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes all expired entries.
func (m *Memory) cleanup() {
	now := m.now()

	m.mu.Lock()
	evicted := int64(0)
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			evicted++
		}
	}
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.record(func(s *Stats) {
		s.Evictions += evicted
		s.TotalKeys = total
		s.LastCleanup = now
	})
}

// record applies fn to the stats under the stats lock.
func (m *Memory) record(fn func(*Stats)) {
	m.statsMu.Lock()
	fn(&m.stats)
	m.statsMu.Unlock()
}
