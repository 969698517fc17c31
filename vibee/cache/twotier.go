package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
)

// Entry wraps a cached payload with its write time.
type Entry[T any] struct {
	Payload   T         `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// TwoTier caches values in an in-process map with a persistent KV tier
// behind it. Both tiers share one TTL; store hits inside the TTL are
// promoted to memory. Store failures degrade to cache misses and
// persist failures are logged and swallowed, so the cache never turns
// a storage problem into a request failure.
type TwoTier[T any] struct {
	mu     sync.RWMutex
	memory map[string]Entry[T]
	store  vibee.KVStore
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger vibee.Logger
}

// NewTwoTier creates a cache instance. Keys are namespaced with prefix
// in the persistent tier so instances never collide.
func NewTwoTier[T any](store vibee.KVStore, prefix string, ttl time.Duration, logger vibee.Logger) *TwoTier[T] {
	return &TwoTier[T]{
		memory: make(map[string]Entry[T]),
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (t *TwoTier[T]) fresh(ts time.Time) bool {
	return t.now().Sub(ts) < t.ttl
}

// GetMemory returns the memory-tier value for key. The memory tier has
// no TTL: once warm it serves until the process exits or the key is
// invalidated. Staleness only matters across restarts, and that is the
// store tier's problem.
func (t *TwoTier[T]) GetMemory(key string) (T, bool) {
	t.mu.RLock()
	entry, ok := t.memory[key]
	t.mu.RUnlock()

	if !ok {
		var zero T
		return zero, false
	}
	return entry.Payload, true
}

// Get checks memory first, then the persistent tier. A fresh store hit
// is promoted to memory.
func (t *TwoTier[T]) Get(ctx context.Context, key string) (T, bool) {
	if value, ok := t.GetMemory(key); ok {
		return value, true
	}

	var zero T
	if t.store == nil {
		return zero, false
	}

	kv, err := t.store.Get(ctx, t.prefix+key)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("cache store read failed", "key", key, "error", err)
		}
		return zero, false
	}
	if kv == nil {
		return zero, false
	}

	var entry Entry[T]
	if err := json.Unmarshal(kv.Payload, &entry); err != nil {
		if t.logger != nil {
			t.logger.Warn("cache entry corrupt, ignoring", "key", key, "error", err)
		}
		return zero, false
	}
	if !t.fresh(entry.Timestamp) {
		return zero, false
	}

	t.mu.Lock()
	t.memory[key] = entry
	t.mu.Unlock()
	return entry.Payload, true
}

// PutMemory writes value to the memory tier only.
func (t *TwoTier[T]) PutMemory(key string, value T) {
	t.mu.Lock()
	t.memory[key] = Entry[T]{Payload: value, Timestamp: t.now()}
	t.mu.Unlock()
}

// Update replaces the memory entry for key atomically. fn receives the
// current value (ok reports whether one exists) and returns the value to
// store; the whole read-modify-write runs under the write lock, so
// concurrent updaters never lose each other's changes.
func (t *TwoTier[T]) Update(key string, fn func(current T, ok bool) T) T {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.memory[key]
	next := fn(entry.Payload, ok)
	t.memory[key] = Entry[T]{Payload: next, Timestamp: t.now()}
	return next
}

// Put writes value to both tiers.
func (t *TwoTier[T]) Put(ctx context.Context, key string, value T) {
	t.PutMemory(key, value)
	t.Persist(ctx, key)
}

// Persist writes the current memory entry for key to the persistent
// tier. A missing memory entry is a no-op.
func (t *TwoTier[T]) Persist(ctx context.Context, key string) {
	if t.store == nil {
		return
	}

	t.mu.RLock()
	entry, ok := t.memory[key]
	t.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("cache entry marshal failed", "key", key, "error", err)
		}
		return
	}
	if err := t.store.Set(ctx, t.prefix+key, payload); err != nil && t.logger != nil {
		t.logger.Warn("cache store write failed", "key", key, "error", err)
	}
}

// Delete drops key from both tiers.
func (t *TwoTier[T]) Delete(ctx context.Context, key string) {
	t.mu.Lock()
	delete(t.memory, key)
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if err := t.store.Delete(ctx, t.prefix+key); err != nil && t.logger != nil {
		t.logger.Warn("cache store delete failed", "key", key, "error", err)
	}
}
