package xlimit

import (
	"context"
	"sync"
	"time"
)

// localBackend 本地令牌桶后端
// 使用内存存储，作为分布式限流的降级方案
type localBackend struct {
	buckets sync.Map // map[string]*tokenBucket
	now     func() time.Time
}

func newLocalBackend(now func() time.Time) *localBackend {
	if now == nil {
		now = time.Now
	}
	return &localBackend{now: now}
}

func (b *localBackend) allowN(ctx context.Context, key string, rule Rule, n int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := b.now()
	bucket := b.getOrCreateBucket(key, rule, now)
	allowed, remaining, retryAfter := bucket.take(n, now)

	return &Result{
		Allowed:    allowed,
		Limit:      rule.Limit,
		Remaining:  remaining,
		ResetAt:    now.Add(rule.Window),
		RetryAfter: retryAfter,
		Rule:       rule.Name,
		Key:        key,
	}, nil
}

func (b *localBackend) getOrCreateBucket(key string, rule Rule, now time.Time) *tokenBucket {
	if val, ok := b.buckets.Load(key); ok {
		if bucket, ok := val.(*tokenBucket); ok {
			return bucket
		}
	}

	capacity := rule.burst()
	bucket := &tokenBucket{
		tokens:     float64(capacity),
		capacity:   capacity,
		rate:       float64(rule.Limit) / rule.Window.Seconds(),
		lastUpdate: now,
	}

	actual, _ := b.buckets.LoadOrStore(key, bucket)
	if tb, ok := actual.(*tokenBucket); ok {
		return tb
	}
	return bucket
}

// tokenBucket 令牌桶实现
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   int
	rate       float64 // 每秒补充的令牌数
	lastUpdate time.Time
}

// take 尝试从令牌桶获取 n 个令牌
func (tb *tokenBucket) take(n int, now time.Time) (allowed bool, remaining int, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastUpdate); elapsed > 0 {
		tb.tokens = min(tb.tokens+tb.rate*elapsed.Seconds(), float64(tb.capacity))
		tb.lastUpdate = now
	}

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true, int(tb.tokens), 0
	}

	deficit := float64(n) - tb.tokens
	return false, int(tb.tokens), time.Duration(deficit / tb.rate * float64(time.Second))
}

var _ backend = (*localBackend)(nil)
