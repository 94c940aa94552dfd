package dispatch

import (
	"context"
	"time"

	"vital-route-api-server/internal/cache"
	"vital-route-api-server/internal/store"
)

// ProfileNames resolves user display names through a cache.
type ProfileNames struct {
	users store.UserStore
	cache cache.Cache
	ttl   time.Duration
}

func NewProfileNames(users store.UserStore, c cache.Cache, ttl time.Duration) *ProfileNames {
	return &ProfileNames{users: users, cache: c, ttl: ttl}
}

func (p *ProfileNames) DisplayName(ctx context.Context, userID string) (string, error) {
	key := "user:name:" + userID
	if p.cache != nil {
		if name, ok := p.cache.Get(ctx, key); ok {
			return name, nil
		}
	}
	u, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	name := u.DisplayName()
	if p.cache != nil {
		_ = p.cache.Set(ctx, key, name, p.ttl)
	}
	return name, nil
}
