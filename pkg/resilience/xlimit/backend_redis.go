package xlimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// backend 限流后端
type backend interface {
	allowN(ctx context.Context, key string, rule Rule, n int) (*Result, error)
}

// redisBackend 基于 redis_rate（GCRA）的分布式后端
type redisBackend struct {
	limiter *redis_rate.Limiter
}

func newRedisBackend(rdb redis.UniversalClient) *redisBackend {
	return &redisBackend{limiter: redis_rate.NewLimiter(rdb)}
}

func (b *redisBackend) allowN(ctx context.Context, key string, rule Rule, n int) (*Result, error) {
	res, err := b.limiter.AllowN(ctx, key, redis_rate.Limit{
		Rate:   rule.Limit,
		Burst:  rule.burst(),
		Period: rule.Window,
	}, n)
	if err != nil {
		return nil, err
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      rule.Limit,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: max(res.RetryAfter, 0),
		Rule:       rule.Name,
		Key:        key,
	}, nil
}

var _ backend = (*redisBackend)(nil)
