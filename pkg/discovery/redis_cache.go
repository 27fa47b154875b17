package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/homemesh/onboard/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "onboard:discovery:"

// RedisCache stores merged discovery results in redis with the configured
// TTL, so multiple API instances share one discovery cache. Redis handles
// expiry and write serialization per key.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.DiscoveredDevice, bool) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "discovery cache read failed", "key", key, "error", err)
		}

		return nil, false
	}

	var devices []models.DiscoveredDevice
	if err := json.Unmarshal(payload, &devices); err != nil {
		c.logger.WarnContext(ctx, "discovery cache entry malformed, dropping", "key", key, "error", err)
		_ = c.Invalidate(ctx, key)

		return nil, false
	}

	return devices, true
}

func (c *RedisCache) Set(ctx context.Context, key string, devices []models.DiscoveredDevice) error {
	payload, err := json.Marshal(devices)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, redisKeyPrefix+key, payload, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, redisKeyPrefix+key).Err()
}
