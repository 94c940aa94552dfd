package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type localCache struct {
	cache *gocache.Cache
}

// NewLocalCache returns an in-process cache backed by go-cache.
func NewLocalCache(defaultExpiration time.Duration) Cache {
	return &localCache{cache: gocache.New(defaultExpiration, 2*defaultExpiration)}
}

func (lc *localCache) Get(_ context.Context, key string) (string, bool) {
	v, found := lc.cache.Get(key)
	if !found {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (lc *localCache) Set(_ context.Context, key, value string, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	lc.cache.Set(key, value, expiration)
	return nil
}

func (lc *localCache) Delete(_ context.Context, key string) error {
	lc.cache.Delete(key)
	return nil
}

func (lc *localCache) Close() error {
	lc.cache.Flush()
	return nil
}
