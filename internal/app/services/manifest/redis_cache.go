package manifest

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

const cacheKeyPrefix = "manifest:"

// RedisCache caches manifests in redis. All failures degrade to cache
// misses; manifest loading must never depend on cache availability.
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache constructs a cache on an existing client.
func NewRedisCache(client *redis.Client, log *logger.Logger) *RedisCache {
	if log == nil {
		log = logger.NewDefault("manifest-cache")
	}
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.WithError(err).Debug("manifest cache read failed")
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, cacheKeyPrefix+key, value, ttl).Err(); err != nil {
		c.log.WithError(err).Debug("manifest cache write failed")
	}
}
