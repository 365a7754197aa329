package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Strategy selects which entries are evicted when the cache is full.
type Strategy string

const (
	// StrategyLRU evicts the entry with the fewest hits since it was stored.
	StrategyLRU Strategy = "lru"
	// StrategyFIFO evicts the oldest entry.
	StrategyFIFO Strategy = "fifo"
	// StrategyTTL evicts every expired entry, which may be none.
	StrategyTTL Strategy = "ttl"
)

// ParseStrategy parses a strategy name; empty means LRU.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyLRU, StrategyFIFO, StrategyTTL:
		return st, nil
	case "":
		return StrategyLRU, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
	}
}

// Config holds cache configuration
type Config struct {
	MaxSize  int
	TTL      time.Duration
	Strategy Strategy
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxSize:  100,
		TTL:      5 * time.Minute,
		Strategy: StrategyLRU,
	}
}

// Entry is a cached value with its bookkeeping.
type Entry struct {
	Key       string
	Value     any
	Timestamp time.Time
	TTL       time.Duration
	Hits      int64
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// EntryStats describes one entry in Stats.
type EntryStats struct {
	Key  string        `json:"key"`
	Hits int64         `json:"hits"`
	Age  time.Duration `json:"age"`
	TTL  time.Duration `json:"ttl"`
}

// Stats is a snapshot of the cache.
//
// HitRate is totalHits/(totalHits+size). Misses are not tracked, so it is a
// heuristic rather than a true hit ratio.
type Stats struct {
	Size    int          `json:"size"`
	MaxSize int          `json:"maxSize"`
	HitRate float64      `json:"hitRate"`
	Entries []EntryStats `json:"entries"`
}

// Manager is a bounded, thread-safe key-value cache.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*Entry
	opts    options
}

// NewManager creates a cache. Zero config fields take their defaults.
func NewManager(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}

	return &Manager{
		cfg:     cfg,
		entries: make(map[string]*Entry),
		opts:    buildOptions("response", opts),
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Set stores value under key. An optional positive ttl overrides the configured
// TTL; zero or negative falls back to it.
// When the cache is full and key is new, entries are evicted first.
func (m *Manager) Set(key string, value any, ttl ...time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryTTL := m.cfg.TTL
	if len(ttl) > 0 && ttl[0] > 0 {
		entryTTL = ttl[0]
	}

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.cfg.MaxSize {
		m.evict()
	}

	m.entries[key] = &Entry{
		Key:       key,
		Value:     value,
		Timestamp: m.opts.clock.Now(),
		TTL:       entryTTL,
	}
	m.opts.observer.CacheSize(m.opts.name, len(m.entries))
}

// Get returns the value for key. Expired entries are removed and reported as misses.
func (m *Manager) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(key)
	if !ok {
		m.opts.observer.CacheMiss(m.opts.name)
		return nil, false
	}

	entry.Hits++
	m.opts.observer.CacheHit(m.opts.name)
	return entry.Value, true
}

// Has reports whether key holds a live entry without counting a hit.
func (m *Manager) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(key)
	return ok
}

// live must be called with m.mu held.
func (m *Manager) live(key string) (*Entry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(m.opts.clock.Now()) {
		delete(m.entries, key)
		m.opts.observer.CacheSize(m.opts.name, len(m.entries))
		return nil, false
	}
	return entry, true
}

// Delete removes key.
func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	m.opts.observer.CacheSize(m.opts.name, len(m.entries))
}

// DeleteMatching removes every key containing substr and returns how many were removed.
func (m *Manager) DeleteMatching(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if strings.Contains(key, substr) {
			delete(m.entries, key)
			removed++
		}
	}
	m.opts.observer.CacheSize(m.opts.name, len(m.entries))
	return removed
}

// Clear removes all entries.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	m.opts.observer.CacheSize(m.opts.name, 0)
}

// SweepExpired removes all expired entries regardless of strategy.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.evictExpired()
}

// Stats returns a snapshot with entries sorted by hits, highest first.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.clock.Now()
	stats := Stats{
		Size:    len(m.entries),
		MaxSize: m.cfg.MaxSize,
		Entries: make([]EntryStats, 0, len(m.entries)),
	}

	var totalHits int64
	for _, e := range m.entries {
		totalHits += e.Hits
		stats.Entries = append(stats.Entries, EntryStats{
			Key:  e.Key,
			Hits: e.Hits,
			Age:  now.Sub(e.Timestamp),
			TTL:  e.TTL,
		})
	}

	if denom := totalHits + int64(stats.Size); denom > 0 {
		stats.HitRate = float64(totalHits) / float64(denom)
	}

	sort.Slice(stats.Entries, func(i, j int) bool {
		if stats.Entries[i].Hits != stats.Entries[j].Hits {
			return stats.Entries[i].Hits > stats.Entries[j].Hits
		}
		return stats.Entries[i].Key < stats.Entries[j].Key
	})

	return stats
}

// evict must be called with m.mu held.
func (m *Manager) evict() {
	var removed int
	switch m.cfg.Strategy {
	case StrategyFIFO:
		removed = m.evictOne(func(a, b *Entry) bool { return a.Timestamp.Before(b.Timestamp) })
	case StrategyTTL:
		m.evictExpired()
		return
	default:
		removed = m.evictOne(func(a, b *Entry) bool {
			if a.Hits != b.Hits {
				return a.Hits < b.Hits
			}
			return a.Timestamp.Before(b.Timestamp)
		})
	}
	if removed > 0 {
		m.opts.observer.CacheEvicted(m.opts.name, removed)
	}
}

// evictOne removes the entry that sorts first under less. Ties fall back to key order.
func (m *Manager) evictOne(less func(a, b *Entry) bool) int {
	var victim *Entry
	for _, e := range m.entries {
		if victim == nil || less(e, victim) || (!less(victim, e) && e.Key < victim.Key) {
			victim = e
		}
	}
	if victim == nil {
		return 0
	}
	delete(m.entries, victim.Key)
	return 1
}

func (m *Manager) evictExpired() int {
	now := m.opts.clock.Now()
	removed := 0
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		m.opts.observer.CacheEvicted(m.opts.name, removed)
		m.opts.observer.CacheSize(m.opts.name, len(m.entries))
	}
	return removed
}
