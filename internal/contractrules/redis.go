package contractrules

import (
	"context"
	"errors"
	"time"

	"github.com/chidi150c/posengine/internal/lotengine"
	"github.com/redis/go-redis/v9"
)

// CachedProvider fronts a source Provider with a Redis cache, grounded on
// the pack's go-coffee/trogers1052-stock-alert-system Redis-caching
// pattern. Cache misses fall through to source and populate the cache;
// Redis errors degrade to calling source directly rather than failing the
// trade (spec.md §7 transient_dependency handling applies at the caller).
type CachedProvider struct {
	client *redis.Client
	source Provider
	ttl    time.Duration
}

// NewCachedProvider wraps source with a Redis cache using the given TTL.
func NewCachedProvider(client *redis.Client, source Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{client: client, source: source, ttl: ttl}
}

func (c *CachedProvider) MethodFor(ctx context.Context, contractID string) (lotengine.Method, error) {
	if contractID == "" {
		return lotengine.MethodFIFO, nil
	}
	key := "contractrules:method:" + contractID

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return lotengine.Method(cached), nil
	}
	if !errors.Is(err, redis.Nil) {
		return c.source.MethodFor(ctx, contractID)
	}

	method, err := c.source.MethodFor(ctx, contractID)
	if err != nil {
		return "", err
	}
	_ = c.client.Set(ctx, key, string(method), c.ttl).Err()
	return method, nil
}
