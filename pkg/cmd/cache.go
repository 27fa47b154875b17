package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homemesh/onboard/pkg/discovery"
)

const defaultCacheEntries = 256

// NewDiscoveryCache picks the discovery result cache backend. A Redis URL
// enables the shared cache, otherwise results stay in process memory.
func NewDiscoveryCache(logger *slog.Logger, redisURL string, ttl time.Duration) discovery.Cache {
	if redisURL == "" {
		return discovery.NewMemoryCache(ttl, defaultCacheEntries)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse Redis URL: %w", err))
	}

	return discovery.NewRedisCache(redis.NewClient(opts), ttl, logger)
}
