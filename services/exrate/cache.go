package exrate

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores rates for a limited time. Implementations are safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (float64, error) // ErrCacheMiss
	Set(ctx context.Context, key string, rate float64, ttl time.Duration) error
}

type (
	memoryEntry struct {
		rate    float64
		expires time.Time
	}

	MemoryCache struct {
		mu      sync.RWMutex
		entries map[string]memoryEntry
		nowFunc func() time.Time
	}
)

var _ Cache = (*MemoryCache)(nil) // interface compliance check

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), nowFunc: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.nowFunc().Before(e.expires) {
		return 0, ErrCacheMiss
	}
	return e.rate, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, rate float64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{rate: rate, expires: c.nowFunc().Add(ttl)}
	return nil
}

// RedisCache shares rates between API instances.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ Cache = (*RedisCache)(nil) // interface compliance check

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (float64, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, errors.Wrap(err, "getting rate from redis")
	}
	rate, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, ErrCacheMiss
	}
	return rate, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, rate float64, ttl time.Duration) error {
	val := strconv.FormatFloat(rate, 'f', -1, 64)
	return errors.Wrap(c.client.Set(ctx, c.prefix+key, val, ttl).Err(), "setting rate in redis")
}
