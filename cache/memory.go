package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process CacheStore with the same contract as the
// redis-backed one. It backs tests and supports failure injection through
// SetHealthy, which makes every operation degrade exactly like a store
// outage would.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]*memoryEntry
	healthy atomic.Bool
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]*memoryEntry),
	}
	s.healthy.Store(true)
	return s
}

// SetHealthy toggles the simulated connection state.
func (m *MemoryStore) SetHealthy(healthy bool) {
	m.healthy.Store(healthy)
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	if key == "" || !m.healthy.Load() {
		return nil, false
	}

	now := time.Now()

	m.mu.RLock()
	entry, exists := m.data[key]
	if !exists || entry.expired(now) {
		m.mu.RUnlock()
		if exists {
			m.evictExpired(key, now)
		}
		return nil, false
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	m.mu.RUnlock()

	return value, true
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	if key == "" || !m.healthy.Load() {
		return false
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := &memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()

	return true
}

func (m *MemoryStore) Delete(_ context.Context, key string) bool {
	if key == "" || !m.healthy.Load() {
		return false
	}

	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return true
}

func (m *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) int {
	if prefix == "" || !m.healthy.Load() {
		return 0
	}

	now := time.Now()
	deleted := 0

	m.mu.Lock()
	for key, entry := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
			if !entry.expired(now) {
				deleted++
			}
		}
	}
	m.mu.Unlock()

	return deleted
}

func (m *MemoryStore) Exists(_ context.Context, key string) bool {
	if key == "" || !m.healthy.Load() {
		return false
	}

	now := time.Now()

	m.mu.RLock()
	entry, exists := m.data[key]
	m.mu.RUnlock()

	if !exists {
		return false
	}
	if entry.expired(now) {
		m.evictExpired(key, now)
		return false
	}

	return true
}

func (m *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, bool) {
	if key == "" || !m.healthy.Load() {
		return 0, false
	}

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists || entry.expired(now) {
		entry = &memoryEntry{count: 1}
		if ttl > 0 {
			entry.expiresAt = now.Add(ttl)
		}
		m.data[key] = entry
		return 1, true
	}

	entry.count++
	return entry.count, true
}

func (m *MemoryStore) Counter(_ context.Context, key string) (int64, bool) {
	if key == "" || !m.healthy.Load() {
		return 0, false
	}

	now := time.Now()

	// count is mutated by Increment under the write lock, so it must be
	// captured before the read lock is released.
	m.mu.RLock()
	entry, exists := m.data[key]
	if !exists || entry.expired(now) {
		m.mu.RUnlock()
		return 0, false
	}
	count := entry.count
	m.mu.RUnlock()

	return count, true
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, bool) {
	if key == "" || !m.healthy.Load() {
		return 0, false
	}

	now := time.Now()

	m.mu.RLock()
	entry, exists := m.data[key]
	m.mu.RUnlock()

	if !exists || entry.expiresAt.IsZero() || entry.expired(now) {
		return 0, false
	}

	return entry.expiresAt.Sub(now), true
}

func (m *MemoryStore) Healthy() bool {
	return m.healthy.Load()
}

func (m *MemoryStore) evictExpired(key string, now time.Time) {
	m.mu.Lock()
	if entry, exists := m.data[key]; exists && entry.expired(now) {
		delete(m.data, key)
	}
	m.mu.Unlock()
}
