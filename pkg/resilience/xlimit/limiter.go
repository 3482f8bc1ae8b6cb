package xlimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// DefaultPrefix 限流键默认前缀（redis_rate 还会再加 "rate:"）
const DefaultPrefix = "limit:"

// Rule 限流规则：每个 Window 内补充 Limit 个配额，桶容量为 Burst。
type Rule struct {
	Name   string
	Limit  int
	Burst  int // 0 表示与 Limit 相同
	Window time.Duration
}

// PerSecond 每秒 n 次的规则
func PerSecond(name string, n int) Rule {
	return Rule{Name: name, Limit: n, Window: time.Second}
}

// PerMinute 每分钟 n 次的规则
func PerMinute(name string, n int) Rule {
	return Rule{Name: name, Limit: n, Window: time.Minute}
}

func (r Rule) burst() int {
	if r.Burst > 0 {
		return r.Burst
	}
	return r.Limit
}

// Validate 校验规则
func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidRule, r.Limit)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidRule, r.Window)
	}
	if r.Burst < 0 {
		return fmt.Errorf("%w: burst must not be negative, got %d", ErrInvalidRule, r.Burst)
	}
	return nil
}

// FallbackStrategy 降级策略
type FallbackStrategy string

const (
	// FallbackLocal 降级到本地令牌桶（推荐）
	FallbackLocal FallbackStrategy = "local"

	// FallbackOpen 放行所有请求（fail-open）
	FallbackOpen FallbackStrategy = "open"

	// FallbackClose 拒绝所有请求（fail-close）
	FallbackClose FallbackStrategy = "close"

	// FallbackNone 不降级，直接返回 Redis 错误
	FallbackNone FallbackStrategy = ""
)

// IsValid 检查降级策略是否有效
func (s FallbackStrategy) IsValid() bool {
	switch s {
	case FallbackLocal, FallbackOpen, FallbackClose, FallbackNone:
		return true
	default:
		return false
	}
}

type options struct {
	prefix     string
	fallback   FallbackStrategy
	logger     xlog.Logger
	onFallback func(key string, strategy FallbackStrategy, err error)
	now        func() time.Time
}

// Option 限流器选项
type Option func(*options)

// WithPrefix 设置限流键前缀
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithFallback 设置 Redis 不可用时的降级策略，默认 FallbackLocal。
func WithFallback(s FallbackStrategy) Option {
	return func(o *options) { o.fallback = s }
}

// WithLogger 设置日志记录器
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOnFallback 设置降级回调，用于告警。
func WithOnFallback(fn func(key string, strategy FallbackStrategy, err error)) Option {
	return func(o *options) { o.onFallback = fn }
}

// WithClock 设置本地令牌桶使用的时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Limiter 单规则限流器
//
// 分布式后端基于 redis_rate；Redis 连接类故障时按降级策略处理。
// rdb 为 nil 时只使用本地令牌桶。
type Limiter struct {
	rule        Rule
	opts        options
	distributed backend
	local       *localBackend
}

// New 创建限流器
func New(rdb redis.UniversalClient, rule Rule, opts ...Option) (*Limiter, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	l, err := newLimiter(rule, opts)
	if err != nil {
		return nil, err
	}
	l.distributed = newRedisBackend(rdb)
	return l, nil
}

// NewLocal 创建仅使用本地令牌桶的限流器（单实例部署或测试）
func NewLocal(rule Rule, opts ...Option) (*Limiter, error) {
	return newLimiter(rule, opts)
}

func newLimiter(rule Rule, opts []Option) (*Limiter, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	o := options{
		prefix:   DefaultPrefix,
		fallback: FallbackLocal,
		logger:   xlog.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.fallback.IsValid() {
		return nil, fmt.Errorf("%w: unknown fallback strategy %q", ErrInvalidRule, o.fallback)
	}
	return &Limiter{
		rule:  rule,
		opts:  o,
		local: newLocalBackend(o.now),
	}, nil
}

// Rule 返回限流规则
func (l *Limiter) Rule() Rule { return l.rule }

// Allow 检查是否允许单个请求通过
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.allowN(ctx, key, 1)
}

// allowN 检查是否允许 n 个请求通过
//
// 被限流时返回 Allowed=false 的结果和 nil 错误；
// 调用方可用 Result.Err 转换为 LimitError。
func (l *Limiter) allowN(ctx context.Context, key string, n int) (*Result, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidRule, n)
	}
	full := l.opts.prefix + key

	if l.distributed == nil {
		return l.local.allowN(ctx, full, l.rule, n)
	}

	res, err := l.distributed.allowN(ctx, full, l.rule, n)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !IsRedisError(err) || l.opts.fallback == FallbackNone {
		return nil, err
	}
	return l.fallback(ctx, full, n, err)
}

func (l *Limiter) fallback(ctx context.Context, key string, n int, cause error) (*Result, error) {
	l.opts.logger.Warn(ctx, "rate limiter falling back due to redis error",
		slog.String("strategy", string(l.opts.fallback)),
		xlog.Err(cause),
	)
	if l.opts.onFallback != nil {
		l.opts.onFallback(key, l.opts.fallback, cause)
	}

	switch l.opts.fallback {
	case FallbackOpen:
		return &Result{Allowed: true, Limit: l.rule.Limit, Rule: "fallback-open", Key: key}, nil
	case FallbackClose:
		return &Result{Allowed: false, Limit: l.rule.Limit, Rule: "fallback-close", Key: key},
			fmt.Errorf("%w: %w", ErrRedisUnavailable, cause)
	default:
		return l.local.allowN(ctx, key, l.rule, n)
	}
}

// Result 限流检查结果
type Result struct {
	// Allowed 是否允许请求通过
	Allowed bool

	// Limit 当前规则的配额上限
	Limit int

	// Remaining 剩余配额
	Remaining int

	// ResetAt 配额完全恢复的时间
	ResetAt time.Time

	// RetryAfter 建议重试等待时间（仅在 Allowed=false 时有意义）
	RetryAfter time.Duration

	// Rule 规则名称
	Rule string

	// Key 完整的限流键
	Key string
}

// Err 被限流时返回 *LimitError，否则返回 nil。
func (r *Result) Err() error {
	if r == nil || r.Allowed {
		return nil
	}
	return &LimitError{
		Key:        r.Key,
		Rule:       r.Rule,
		Limit:      r.Limit,
		RetryAfter: r.RetryAfter.Milliseconds(),
	}
}
