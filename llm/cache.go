package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hubenschmidt/go-movienight/logging"
	"github.com/hubenschmidt/go-movienight/vector"
)

const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"
)

type CacheConfig struct {
	Backend    string        `koanf:"backend" validate:"omitempty,oneof=none memory redis badger"`
	TTL        time.Duration `koanf:"ttl"`
	MaxEntries int           `koanf:"max_entries"`
	RedisURL   string        `koanf:"redis_url"`
	BadgerDir  string        `koanf:"badger_dir"`
}

// Cache stores embeddings by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (vector.Vector, bool, error)
	Set(ctx context.Context, key string, v vector.Vector) error
	Close() error
}

// NewCache builds the configured cache, or nil for "none".
func NewCache(cfg CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", CacheNone:
		return nil, nil
	case CacheMemory:
		return NewMemoryCache(cfg.TTL, cfg.MaxEntries), nil
	case CacheRedis:
		return NewRedisCache(cfg.RedisURL, cfg.TTL)
	case CacheBadger:
		return NewBadgerCache(cfg.BadgerDir, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// CachedEmbedder normalizes input text and consults a cache before
// calling the wrapped embedder. Cache failures are logged and bypassed.
type CachedEmbedder struct {
	next  Embedder
	cache Cache
	model string
}

func NewCachedEmbedder(next Embedder, cache Cache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	text = NormalizeText(text)
	key := CacheKey(c.model, text)

	v, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logging.Warn().Err(err).Str("component", "embed_cache").Msg("cache get failed")
	}
	if ok {
		return v, nil
	}

	v, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, v); err != nil {
		logging.Warn().Err(err).Str("component", "embed_cache").Msg("cache set failed")
	}
	return v, nil
}

type memoryEntry struct {
	v         vector.Vector
	expiresAt time.Time
}

// MemoryCache is a process-local cache with optional TTL and size cap.
// When full, expired entries are purged first, then an arbitrary entry is
// evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) (vector.Vector, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.v.Clone(), true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, v vector.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked()
	}

	var exp time.Time
	if m.ttl > 0 {
		exp = m.now().Add(m.ttl)
	}
	m.entries[key] = memoryEntry{v: v.Clone(), expiresAt: exp}
	return nil
}

func (m *MemoryCache) evictLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	for k := range m.entries {
		if len(m.entries) < m.maxEntries {
			return
		}
		delete(m.entries, k)
	}
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache) Close() error { return nil }
