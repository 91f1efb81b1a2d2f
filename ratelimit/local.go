package ratelimit

import (
	"sync"
	"time"
)

const localShardCount = 64

type localWindow struct {
	count       int64
	windowStart int64
	lastAccess  int64
}

type localShard struct {
	mu      sync.Mutex
	windows map[string]*localWindow
}

// localCounter is the in-process fixed-window fallback used while the
// shared cache store is unreachable. Counts are per instance and reset on
// restart; a cache outage must never turn the limiter into a denial of
// service against legitimate traffic.
type localCounter struct {
	shards [localShardCount]*localShard
}

func newLocalCounter() *localCounter {
	lc := &localCounter{}
	for i := range lc.shards {
		lc.shards[i] = &localShard{
			windows: make(map[string]*localWindow, 64),
		}
	}
	return lc
}

func (lc *localCounter) shard(key string) *localShard {
	return lc.shards[fnv32a(key)&(localShardCount-1)]
}

// increment bumps the counter for key in the window containing now,
// starting a fresh window at the boundary.
func (lc *localCounter) increment(key string, window time.Duration, now int64) int64 {
	shard := lc.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	w, exists := shard.windows[key]
	if !exists {
		w = &localWindow{windowStart: now}
		shard.windows[key] = w
	} else if now-w.windowStart >= int64(window) {
		w.windowStart = now
		w.count = 0
	}

	w.count++
	w.lastAccess = now
	return w.count
}

// count reads the counter for key without bumping it; exists is false when
// no window is open.
func (lc *localCounter) count(key string, window time.Duration, now int64) (int64, bool) {
	shard := lc.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	w, exists := shard.windows[key]
	if !exists || now-w.windowStart >= int64(window) {
		return 0, false
	}

	return w.count, true
}

// resetIn reports the time until the window for key rolls over, zero when
// no window is open.
func (lc *localCounter) resetIn(key string, window time.Duration, now int64) time.Duration {
	shard := lc.shard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	w, exists := shard.windows[key]
	if !exists {
		return 0
	}

	remaining := int64(window) - (now - w.windowStart)
	if remaining <= 0 {
		return 0
	}

	return time.Duration(remaining)
}

// sweep drops windows untouched for longer than maxAge and returns how many
// were removed.
func (lc *localCounter) sweep(maxAge time.Duration, now int64) int {
	cutoff := now - int64(maxAge)
	removed := 0

	for _, shard := range lc.shards {
		shard.mu.Lock()
		for key, w := range shard.windows {
			if w.lastAccess < cutoff {
				delete(shard.windows, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}

	return removed
}

// reset clears every local window and returns how many were dropped.
func (lc *localCounter) reset() int {
	removed := 0

	for _, shard := range lc.shards {
		shard.mu.Lock()
		removed += len(shard.windows)
		shard.windows = make(map[string]*localWindow, 64)
		shard.mu.Unlock()
	}

	return removed
}

func fnv32a(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)

	hash := uint32(offset32)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime32
	}
	return hash
}
