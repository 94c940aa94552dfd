package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vital-route-api-server/config"
)

type redisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and pings it before returning.
func NewRedisCache(cfg config.RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &redisCache{client: client}, nil
}

func (rc *redisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		// redis.Nil and transport errors both read as a miss.
		return "", false
	}
	return val, true
}

func (rc *redisCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return rc.client.Set(ctx, key, value, expiration).Err()
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}
