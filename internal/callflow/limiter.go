package callflow

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"callserver/pkg/utils"
)

// Limiter caps concurrent outbound calls per campaign, protecting
// both carrier spend and target office switchboards.
type Limiter interface {
	Acquire(ctx context.Context, campaignID string) (bool, error)
	Release(ctx context.Context, campaignID string) error
}

// RedisLimiter enforces the cap across server instances with an
// atomic Redis counter.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

// NewRedisLimiter caps concurrent calls per campaign. The TTL bounds
// slot leakage if a status callback never arrives.
func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func (l *RedisLimiter) key(campaignID string) string {
	return "calls:active:" + campaignID
}

func (l *RedisLimiter) Acquire(ctx context.Context, campaignID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, l.key(campaignID), l.limit, l.ttl)
}

func (l *RedisLimiter) Release(ctx context.Context, campaignID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key(campaignID))
}

// NoLimiter never rejects; used when no Redis is configured.
type NoLimiter struct{}

func (NoLimiter) Acquire(ctx context.Context, campaignID string) (bool, error) { return true, nil }
func (NoLimiter) Release(ctx context.Context, campaignID string) error         { return nil }
