package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// QueryConfig configures a QueryCache.
type QueryConfig struct {
	MaxEntries int
	DefaultTTL time.Duration
	// FetchTimeout bounds a shared fetch, which no longer follows any single
	// caller's cancellation.
	FetchTimeout time.Duration
}

// DefaultQueryConfig returns default query cache configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		MaxEntries:   1000,
		DefaultTTL:   5 * time.Minute,
		FetchTimeout: 30 * time.Second,
	}
}

type queryEntry struct {
	value     any
	expiresAt time.Time
}

// flight is one running fetch. Invalidate marks it stale so its result is
// returned to the callers already waiting but never stored.
type flight struct {
	stale bool
}

// QueryCache is a read-through cache with per-key TTLs.
type QueryCache struct {
	entries      *lru.Cache[string, queryEntry]
	group        singleflight.Group
	defaultTTL   time.Duration
	fetchTimeout time.Duration
	opts         options

	// mu orders stores against Invalidate and Clear.
	mu      sync.Mutex
	flights map[string]*flight
}

// NewQueryCache creates a query cache holding at most cfg.MaxEntries values;
// the least recently used value is dropped beyond that.
func NewQueryCache(cfg QueryConfig, opts ...Option) (*QueryCache, error) {
	def := DefaultQueryConfig()
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxEntries < 0 {
		return nil, fmt.Errorf("%w: max entries must be positive", ErrInvalidConfig)
	}

	q := &QueryCache{
		defaultTTL:   cfg.DefaultTTL,
		fetchTimeout: cfg.FetchTimeout,
		opts:         buildOptions("query", opts),
		flights:      make(map[string]*flight),
	}

	entries, err := lru.New[string, queryEntry](cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	q.entries = entries

	return q, nil
}

// Get returns the cached value for key or calls fetch and caches its result for
// ttl (the default TTL when ttl <= 0). Concurrent misses on the same key wait for
// one fetch and share its result. Errors are returned and not cached.
//
// The shared fetch keeps ctx's values but not its cancellation; a caller whose
// ctx ends stops waiting without failing the others.
func (q *QueryCache) Get(ctx context.Context, key string, fetch func(context.Context) (any, error), ttl time.Duration) (any, error) {
	if v, ok := q.lookup(key); ok {
		q.opts.observer.CacheHit(q.opts.name)
		return v, nil
	}
	q.opts.observer.CacheMiss(q.opts.name)

	if ttl <= 0 {
		ttl = q.defaultTTL
	}

	ch := q.group.DoChan(key, func() (any, error) {
		// A previous flight may have filled the key while this caller waited.
		if v, ok := q.lookup(key); ok {
			return v, nil
		}
		return q.runFetch(context.WithoutCancel(ctx), key, fetch, ttl)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *QueryCache) runFetch(ctx context.Context, key string, fetch func(context.Context) (any, error), ttl time.Duration) (v any, err error) {
	f := &flight{}
	q.mu.Lock()
	q.flights[key] = f
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		if q.flights[key] == f {
			delete(q.flights, key)
		}
		q.mu.Unlock()
	}()

	// DoChan re-panics on its own goroutine, which no handler can recover.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFetchPanicked, r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, q.fetchTimeout)
	defer cancel()

	v, err = fetch(ctx)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if f.stale {
		return v, nil
	}
	if evicted := q.entries.Add(key, queryEntry{value: v, expiresAt: q.opts.clock.Now().Add(ttl)}); evicted {
		q.opts.observer.CacheEvicted(q.opts.name, 1)
	}
	q.opts.observer.CacheSize(q.opts.name, q.entries.Len())
	return v, nil
}

func (q *QueryCache) lookup(key string) (any, bool) {
	entry, ok := q.entries.Get(key)
	if !ok {
		return nil, false
	}
	if q.opts.clock.Now().After(entry.expiresAt) {
		q.entries.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Invalidate removes every key containing substr and returns how many were removed.
// Fetches still running for a matching key are not stored, and later callers start
// a new fetch instead of joining them.
func (q *QueryCache) Invalidate(substr string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropFlights(func(key string) bool { return strings.Contains(key, substr) })

	removed := 0
	for _, key := range q.entries.Keys() {
		if strings.Contains(key, substr) && q.entries.Remove(key) {
			removed++
		}
	}
	q.opts.observer.CacheSize(q.opts.name, q.entries.Len())
	return removed
}

// Clear removes every entry.
func (q *QueryCache) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropFlights(func(string) bool { return true })
	q.entries.Purge()
	q.opts.observer.CacheSize(q.opts.name, 0)
}

// dropFlights must be called with q.mu held.
func (q *QueryCache) dropFlights(match func(key string) bool) {
	for key, f := range q.flights {
		if match(key) {
			f.stale = true
			q.group.Forget(key)
			delete(q.flights, key)
		}
	}
}

// Len returns the number of cached values, including expired ones not yet removed.
func (q *QueryCache) Len() int {
	return q.entries.Len()
}

// Fetch is a typed wrapper around QueryCache.Get.
func Fetch[T any](ctx context.Context, q *QueryCache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	v, err := q.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, ttl)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrUnexpectedType, key, v)
	}
	return typed, nil
}
