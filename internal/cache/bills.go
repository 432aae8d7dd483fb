package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// BillCache layers a process-local LRU in front of an optional RedisCache.
// Keys are scoped by a local generation and the Redis version, so a load that
// finishes after Invalidate writes into a key nobody reads any more.
type BillCache[T any] struct {
	local  *LRUCache[T]
	remote *RedisCache
	gen    atomic.Int64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewBillCache builds a tiered cache; remote may be nil.
func NewBillCache[T any](size int, localTTL time.Duration, remote *RedisCache) *BillCache[T] {
	return &BillCache[T]{
		local:  NewLRUCache[T](size, localTTL),
		remote: remote,
	}
}

// Generation changes on every invalidation. Callers coalescing loads key on it
// so a request made after a write never joins a load that started before it.
func (b *BillCache[T]) Generation() int64 { return b.gen.Load() }

// Local exposes the LRU tier so a Manager can sweep it.
func (b *BillCache[T]) Local() *LRUCache[T] { return b.local }

// Fetch returns the value for key, calling load on a miss in both tiers.
func (b *BillCache[T]) Fetch(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	gen := strconv.FormatInt(b.gen.Load(), 10)
	vkey, err := b.remote.BuildKey(ctx, "bills", key, gen)
	if err != nil {
		slog.WarnContext(ctx, "Redis unavailable, bypassing shared cache", "component", "cache", "error", err)
		b.misses.Add(1)
		return load(ctx)
	}

	if v, ok := b.local.Get(vkey); ok {
		b.hits.Add(1)
		return v, nil
	}
	b.misses.Add(1)

	var (
		out     T
		loaded  T
		called  bool
		loadErr error
	)
	err = b.remote.FetchJSON(ctx, vkey, &out, func(ctx context.Context) (any, error) {
		called = true
		loaded, loadErr = load(ctx)
		return loaded, loadErr
	})
	if loadErr != nil {
		return out, loadErr
	}
	if err != nil {
		slog.WarnContext(ctx, "Shared cache read failed, loading directly", "component", "cache", "error", err)
		if called {
			out = loaded
		} else if out, err = load(ctx); err != nil {
			return out, err
		}
	}
	b.local.Set(vkey, out)
	return out, nil
}

// Invalidate drops the local tier and bumps the shared version.
func (b *BillCache[T]) Invalidate(ctx context.Context) {
	b.InvalidateLocal()
	if err := b.remote.Bump(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to bump shared bill cache version", "component", "cache", "error", err)
	}
}

// InvalidateLocal drops only this process's entries.
func (b *BillCache[T]) InvalidateLocal() {
	b.gen.Add(1)
	b.local.Clear()
}

// Stats returns hit and miss counters since start.
func (b *BillCache[T]) Stats() (hits, misses int64) {
	return b.hits.Load(), b.misses.Load()
}

// Ping checks the shared tier.
func (b *BillCache[T]) Ping(ctx context.Context) error {
	return b.remote.Ping(ctx)
}
