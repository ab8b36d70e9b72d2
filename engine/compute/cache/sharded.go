// Package cache provides the thread-safe get-or-create containers
// backing the shader and pipeline caches. Entries are never evicted:
// they own live native objects for the lifetime of the process.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	ShardCount = 16

	shardMask = ShardCount - 1
)

// Hasher computes a hash for a key, used for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Stats reports cache activity.
type Stats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Creations uint64
}

// Sharded is a thread-safe, sharded get-or-create map. A miss runs the
// creator under the shard lock, so concurrent lookups of the same key
// create the value exactly once and every caller sees the identical
// instance.
type Sharded[K comparable, V any] struct {
	shards [ShardCount]*shard[K, V]
	hasher Hasher[K]

	hits      atomic.Uint64
	misses    atomic.Uint64
	creations atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// NewSharded creates an empty cache using hasher for shard selection.
func NewSharded[K comparable, V any](hasher Hasher[K]) *Sharded[K, V] {
	c := &Sharded[K, V]{hasher: hasher}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{entries: make(map[K]V)}
	}
	return c
}

func (c *Sharded[K, V]) getShard(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get retrieves a cached value by key.
func (c *Sharded[K, V]) Get(key K) (V, bool) {
	sh := c.getShard(key)
	sh.mu.RLock()
	value, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// GetOrCreate returns the cached value for key, creating it at most
// once. The creator runs with the shard lock held; keep it free of
// calls back into the same cache. A creator error caches nothing.
func (c *Sharded[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	sh := c.getShard(key)

	sh.mu.RLock()
	value, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return value, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	// Re-check: another goroutine may have created it while we waited.
	if value, ok := sh.entries[key]; ok {
		c.hits.Add(1)
		return value, nil
	}

	c.misses.Add(1)
	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.creations.Add(1)
	sh.entries[key] = value
	return value, nil
}

// Range calls fn for every entry until fn returns false. The shard
// lock is held during each call.
func (c *Sharded[K, V]) Range(fn func(key K, value V) bool) {
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k, v := range sh.entries {
			if !fn(k, v) {
				sh.mu.Unlock()
				return
			}
		}
		sh.mu.Unlock()
	}
}

// Clear removes all entries. The caller is responsible for destroying
// the values first (see Range).
func (c *Sharded[K, V]) Clear() {
	for _, sh := range c.shards {
		sh.mu.Lock()
		sh.entries = make(map[K]V)
		sh.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (c *Sharded[K, V]) Len() int {
	total := 0
	for _, sh := range c.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}

// Stats returns current cache statistics.
func (c *Sharded[K, V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Creations: c.creations.Load(),
	}
}
