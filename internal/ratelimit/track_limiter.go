package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/darkziah/better-auth-paymongo/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyTrackEntity = "billing:track:%s:%s"

// TrackLimiter bounds how fast one entity can hit the usage-tracking
// endpoints. Without a redis client the limiter is disabled and every
// call is admitted.
type TrackLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewTrackLimiter(cfg config.Config, client *redis.Client) *TrackLimiter {
	if client == nil || cfg.TrackRate <= 0 || cfg.TrackBurst <= 0 {
		return &TrackLimiter{}
	}
	return &TrackLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.TrackRate,
		burst:   cfg.TrackBurst,
	}
}

func (l *TrackLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *TrackLimiter) Allow(ctx context.Context, entityType, entityID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyTrackEntity, strings.TrimSpace(entityType), strings.TrimSpace(entityID))
	allowed, _, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	return allowed, err
}
