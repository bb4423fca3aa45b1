package registry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mmh_backend/internal/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "registry:company:"

// CachedClient keeps successful lookups in redis. Redis errors never fail a
// lookup; the upstream registry is asked instead.
type CachedClient struct {
	next  Lookuper
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedClient(next Lookuper, rdb *redis.Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedClient{next: next, redis: rdb, ttl: ttl}
}

func (c *CachedClient) Lookup(ctx context.Context, ico string) (*Company, error) {
	key := cacheKeyPrefix + ico

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var company Company
		if jsonErr := json.Unmarshal(raw, &company); jsonErr == nil {
			return &company, nil
		}
		logger.CtxWarn(ctx, "Discarding corrupt registry cache entry", "ico", ico)
	case !errors.Is(err, redis.Nil):
		logger.CtxWarn(ctx, "Registry cache read failed", "ico", ico, "error", err)
	}

	company, err := c.next.Lookup(ctx, ico)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(company); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logger.CtxWarn(ctx, "Registry cache write failed", "ico", ico, "error", err)
		}
	}
	return company, nil
}

// NewRedisClient parses a redis:// URL and checks connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
