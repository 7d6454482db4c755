package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements the Cache interface backed by Redis.
type RedisCache struct {
	client *goredis.Client
}

// NewCache creates a Redis-backed cache.
func NewCache(cfg Config) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

// ---- KV ----

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

// ---- ZSet ----

func (r *RedisCache) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	return r.client.ZIncrBy(ctx, key, incr, member).Result()
}

func (r *RedisCache) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRevRange(ctx, key, start, stop).Result()
}

func (r *RedisCache) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := r.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, ErrNotFound
	}
	return v, err
}
