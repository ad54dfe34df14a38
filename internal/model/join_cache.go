package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"RestJSON/internal/logger"

	"github.com/redis/go-redis/v9"
)

// JoinCache stores flattened through-path joins keyed by "resource|param".
type JoinCache interface {
	Get(ctx context.Context, key string) ([]JoinSpec, string, bool)
	Set(ctx context.Context, key string, joins []JoinSpec, alias string)
}

const (
	joinCacheTTL       = 7 * 24 * time.Hour
	joinCacheSweepFreq = time.Hour
)

type joinCacheEntry struct {
	joins    []JoinSpec
	alias    string
	lastUsed time.Time
}

// MemoryJoinCache is an in-process cache with idle expiry.
type MemoryJoinCache struct {
	mu         sync.Mutex
	items      map[string]*joinCacheEntry
	lastSweep  time.Time
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryJoinCache creates a cache; zero values select defaults and no
// entry limit.
func NewMemoryJoinCache(ttl time.Duration, maxEntries int) *MemoryJoinCache {
	if ttl <= 0 {
		ttl = joinCacheTTL
	}
	return &MemoryJoinCache{
		items:      make(map[string]*joinCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryJoinCache) Get(_ context.Context, key string) ([]JoinSpec, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.maybeSweepLocked(now)
	entry, ok := c.items[key]
	if !ok {
		return nil, "", false
	}
	if now.Sub(entry.lastUsed) > c.ttl {
		delete(c.items, key)
		return nil, "", false
	}
	entry.lastUsed = now
	return cloneJoins(entry.joins), entry.alias, true
}

func (c *MemoryJoinCache) Set(_ context.Context, key string, joins []JoinSpec, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.maybeSweepLocked(now)
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		logger.Warn("join_cache_limit_exceeded", map[string]any{
			"entries":     len(c.items),
			"max_entries": c.maxEntries,
		})
		return
	}
	c.items[key] = &joinCacheEntry{joins: cloneJoins(joins), alias: alias, lastUsed: now}
}

func (c *MemoryJoinCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *MemoryJoinCache) maybeSweepLocked(now time.Time) {
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < joinCacheSweepFreq {
		return
	}
	for key, entry := range c.items {
		if now.Sub(entry.lastUsed) > c.ttl {
			delete(c.items, key)
		}
	}
	c.lastSweep = now
}

func cloneJoins(in []JoinSpec) []JoinSpec {
	out := make([]JoinSpec, len(in))
	copy(out, in)
	return out
}

// RedisJoinCache shares resolved joins between instances. Lookups that
// fail on the redis side fall through to the local cache.
type RedisJoinCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	local *MemoryJoinCache
}

const joinCachePrefix = "joins:"

type redisJoinEntry struct {
	Joins []JoinSpec `json:"joins"`
	Alias string     `json:"alias"`
}

func NewRedisJoinCache(rdb *redis.Client, ttl time.Duration) *RedisJoinCache {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisJoinCache{rdb: rdb, ttl: ttl, local: NewMemoryJoinCache(ttl, 0)}
}

func (c *RedisJoinCache) Get(ctx context.Context, key string) ([]JoinSpec, string, bool) {
	if joins, alias, ok := c.local.Get(ctx, key); ok {
		return joins, alias, true
	}
	cached, err := c.rdb.Get(ctx, joinCachePrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("join_cache_redis_get_failed", map[string]any{"key": key, "error": err.Error()})
		}
		return nil, "", false
	}
	var entry redisJoinEntry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		logger.Warn("join_cache_redis_invalid", map[string]any{"key": key, "error": err.Error()})
		return nil, "", false
	}
	c.local.Set(ctx, key, entry.Joins, entry.Alias)
	return entry.Joins, entry.Alias, true
}

func (c *RedisJoinCache) Set(ctx context.Context, key string, joins []JoinSpec, alias string) {
	c.local.Set(ctx, key, joins, alias)
	data, err := json.Marshal(redisJoinEntry{Joins: joins, Alias: alias})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, joinCachePrefix+key, data, c.ttl).Err(); err != nil {
		logger.Warn("join_cache_redis_set_failed", map[string]any{"key": key, "error": err.Error()})
	}
}

// Flush removes every shared entry. Called at boot.
func (c *RedisJoinCache) Flush(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, joinCachePrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}
