package cache

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// checkout-session payment status is cached briefly so subscription reads do
// not hit the gateway on every call.
const defaultCheckoutStatusTTL = 60 * time.Second

// CheckoutStatusCache stores gateway-reported payment status keyed by
// entityType:entityId:sessionId.
type CheckoutStatusCache interface {
	GetStatus(ctx context.Context, entityType, entityID, sessionID string) (string, bool)
	SetStatus(ctx context.Context, entityType, entityID, sessionID, status string)
	DeleteStatus(ctx context.Context, entityType, entityID, sessionID string)
}

// Module provides the checkout status cache. A redis client is optional;
// without one the cache falls back to in-process TTL storage.
var Module = fx.Provide(NewCheckoutStatusCache)

type CacheParams struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

func NewCheckoutStatusCache(p CacheParams) CheckoutStatusCache {
	if p.Redis != nil {
		return &redisCheckoutStatusCache{client: p.Redis, ttl: defaultCheckoutStatusTTL}
	}
	return &memoryCheckoutStatusCache{
		statuses: NewTTLCache[string, string](),
		ttl:      defaultCheckoutStatusTTL,
	}
}

type memoryCheckoutStatusCache struct {
	statuses Cache[string, string]
	ttl      time.Duration
}

func (c *memoryCheckoutStatusCache) GetStatus(_ context.Context, entityType, entityID, sessionID string) (string, bool) {
	return c.statuses.Get(statusKey(entityType, entityID, sessionID))
}

func (c *memoryCheckoutStatusCache) SetStatus(_ context.Context, entityType, entityID, sessionID, status string) {
	if strings.TrimSpace(status) == "" {
		return
	}
	c.statuses.Set(statusKey(entityType, entityID, sessionID), status, c.ttl)
}

func (c *memoryCheckoutStatusCache) DeleteStatus(_ context.Context, entityType, entityID, sessionID string) {
	c.statuses.Delete(statusKey(entityType, entityID, sessionID))
}

type redisCheckoutStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCheckoutStatusCache) GetStatus(ctx context.Context, entityType, entityID, sessionID string) (string, bool) {
	value, err := c.client.Get(ctx, statusKey(entityType, entityID, sessionID)).Result()
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (c *redisCheckoutStatusCache) SetStatus(ctx context.Context, entityType, entityID, sessionID, status string) {
	if strings.TrimSpace(status) == "" {
		return
	}
	_ = c.client.Set(ctx, statusKey(entityType, entityID, sessionID), status, c.ttl).Err()
}

func (c *redisCheckoutStatusCache) DeleteStatus(ctx context.Context, entityType, entityID, sessionID string) {
	_ = c.client.Del(ctx, statusKey(entityType, entityID, sessionID)).Err()
}

func statusKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, "checkout_status")
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, ":")
}
