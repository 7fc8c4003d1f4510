package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"subsync/internal/shared/logger"
)

const (
	statusKeyPrefix = "subscription:status:"
	baseStatusTTL   = 5 * time.Minute
	statusTTLJitter = 1 * time.Minute // TTL range: 5-6 min (anti-stampede)
)

// RedisSubscriptionStatusCache caches the effective status per subscription
// SID. Reconcile and sweep writes invalidate the entry, so entries only go
// stale for at most the TTL when an invalidation is lost.
type RedisSubscriptionStatusCache struct {
	client *redis.Client
	logger logger.Interface
}

// NewRedisSubscriptionStatusCache creates a new Redis-based status cache
func NewRedisSubscriptionStatusCache(client *redis.Client, logger logger.Interface) *RedisSubscriptionStatusCache {
	return &RedisSubscriptionStatusCache{
		client: client,
		logger: logger,
	}
}

func (c *RedisSubscriptionStatusCache) key(sid string) string {
	return statusKeyPrefix + sid
}

// GetStatus retrieves the cached status; the second return reports a hit.
func (c *RedisSubscriptionStatusCache) GetStatus(ctx context.Context, sid string) (string, bool, error) {
	status, err := c.client.Get(ctx, c.key(sid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get status from cache: %w", err)
	}
	return status, true, nil
}

// SetStatus caches the status with a jittered TTL
func (c *RedisSubscriptionStatusCache) SetStatus(ctx context.Context, sid, status string) error {
	ttl := baseStatusTTL + rand.N(statusTTLJitter)
	if err := c.client.Set(ctx, c.key(sid), status, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status in cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached status after a reconcile or sweep write
func (c *RedisSubscriptionStatusCache) Invalidate(ctx context.Context, sid string) error {
	if err := c.client.Del(ctx, c.key(sid)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate status cache: %w", err)
	}
	return nil
}
