// Package cache provides the redis-backed dashboard cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
)

// Cache stores serialized dashboard payloads with a short TTL. A nil Cache
// disables caching; every dashboard request then hits the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// New connects to Redis. Returns nil when Redis is not configured.
func New(cfg config.CacheConfig, log *logger.Logger) (*Cache, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	return &Cache{
		client: redis.NewClient(opt),
		ttl:    cfg.GetMetricsCacheTTL(),
		log:    log,
	}, nil
}

// Get returns the cached payload, or ok=false on a miss. Redis failures are
// logged and treated as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return payload, true
}

// Set stores the payload for the configured TTL, best effort.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) {
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// Delete drops a key, best effort. Used by event-driven invalidation.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}
