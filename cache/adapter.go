package cache

import (
	"context"
	"time"

	"github.com/harutoki/beastline/server/cache/local"
	cacheredis "github.com/harutoki/beastline/server/cache/redis"
)

// Cache defines the KV and sorted-set operations the server uses:
// session tokens (KV) and the victories leaderboard (ZSet).
type Cache interface {
	// KV
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// ZSet
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
}

// Config holds configuration for both Redis and the in-process cache.
type Config struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// New returns a Redis-backed cache when RedisAddr is set, otherwise an
// in-process cache suitable for single-node deployments and tests.
func New(cfg Config) (Cache, error) {
	if cfg.RedisAddr != "" {
		return cacheredis.NewCache(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return local.NewCache()
}
