// Package cache is a small string cache used for profile name lookups.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vital-route-api-server/config"
)

// Cache stores string values with a per-key expiration.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NewCache builds the cache selected by cfg.Type ("local" or "redis").
func NewCache(cfg config.CacheConfig, redisCfg config.RedisConfig) (Cache, error) {
	ttl, err := ParseTTL(cfg.TTL)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		return NewLocalCache(ttl), nil
	case "redis":
		return NewRedisCache(redisCfg)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// ParseTTL parses a duration string, defaulting to five minutes when empty.
func ParseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", s, err)
	}
	return d, nil
}
