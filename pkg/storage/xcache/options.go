package xcache

import (
	"fmt"
	"time"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// 默认配置。
const (
	// DefaultJitterUnit 抖动的时间单位。
	DefaultJitterUnit = time.Second

	// DefaultJitterMax 抖动上限（不含），取值范围 [0, 10s)。
	DefaultJitterMax = 10 * DefaultJitterUnit

	// DefaultNullTTL 空值占位的过期时间。
	DefaultNullTTL = 2 * time.Minute

	// DefaultRebuildLockTTL 重建锁的兜底过期时间。
	DefaultRebuildLockTTL = 10 * time.Second

	// DefaultLoadTimeout 单次回源的独立超时。
	DefaultLoadTimeout = 30 * time.Second

	// DefaultRebuildWorkers 重建 worker 数量。
	DefaultRebuildWorkers = 10

	// DefaultRebuildQueueSize 重建任务队列长度。
	DefaultRebuildQueueSize = 1024

	// DefaultLocalNullTTL 本地空值影子的过期时间。
	DefaultLocalNullTTL = 30 * time.Second

	// DefaultLocalNullMaxCost 本地空值影子最多容纳的 key 数量。
	DefaultLocalNullMaxCost = 1 << 16
)

// Option 定义 Client 的配置选项。
type Option func(*Options)

// Options Client 配置。
type Options struct {
	JitterMax      time.Duration
	NullTTL        time.Duration
	RebuildLockTTL time.Duration
	LoadTimeout    time.Duration

	RebuildWorkers   int
	RebuildQueueSize int

	// LocalNullTTL > 0 时启用基于 ristretto 的本地空值影子
	LocalNullTTL     time.Duration
	LocalNullMaxCost int64

	Logger xlog.Logger
	Clock  func() time.Time
}

func defaultOptions() *Options {
	return &Options{
		JitterMax:        DefaultJitterMax,
		NullTTL:          DefaultNullTTL,
		RebuildLockTTL:   DefaultRebuildLockTTL,
		LoadTimeout:      DefaultLoadTimeout,
		RebuildWorkers:   DefaultRebuildWorkers,
		RebuildQueueSize: DefaultRebuildQueueSize,
		LocalNullMaxCost: DefaultLocalNullMaxCost,
		Logger:           xlog.Discard(),
		Clock:            time.Now,
	}
}

func (o *Options) validate() error {
	if o.NullTTL <= 0 {
		return fmt.Errorf("%w: null ttl must be positive", ErrInvalidConfig)
	}
	if o.RebuildLockTTL <= 0 {
		return fmt.Errorf("%w: rebuild lock ttl must be positive", ErrInvalidConfig)
	}
	if o.LocalNullTTL > 0 && o.LocalNullMaxCost <= 0 {
		return fmt.Errorf("%w: local null max cost must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithJitterMax 设置 TTL 抖动上限，0 表示关闭抖动。
func WithJitterMax(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.JitterMax = d
		}
	}
}

// WithNullTTL 设置空值占位的过期时间。
func WithNullTTL(d time.Duration) Option {
	return func(o *Options) {
		o.NullTTL = d
	}
}

// WithRebuildLockTTL 设置逻辑过期重建锁的兜底过期时间。
// 应大于一次回源加写缓存的耗时。
func WithRebuildLockTTL(d time.Duration) Option {
	return func(o *Options) {
		o.RebuildLockTTL = d
	}
}

// WithLoadTimeout 设置回源超时。
//   - d == 0: 禁用超时
//   - d > 0: 使用指定超时
func WithLoadTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.LoadTimeout = d
		}
	}
}

// WithRebuildPool 设置重建 worker 数量和队列长度。
func WithRebuildPool(workers, queueSize int) Option {
	return func(o *Options) {
		o.RebuildWorkers = workers
		o.RebuildQueueSize = queueSize
	}
}

// WithLocalNullCache 启用进程内空值影子。
//
// 命中 Redis 空值占位的 key 会在本地记录 ttl 时长，
// 之后的穿透请求直接在进程内返回，不再访问 Redis。
func WithLocalNullCache(ttl time.Duration, maxKeys int64) Option {
	return func(o *Options) {
		o.LocalNullTTL = ttl
		if maxKeys > 0 {
			o.LocalNullMaxCost = maxKeys
		}
	}
}

// WithLogger 设置日志记录器，默认丢弃。
func WithLogger(l xlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClock 设置时钟，用于逻辑过期判断。
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Clock = now
		}
	}
}

// =============================================================================
// 查询选项
// =============================================================================

// QueryOption 单次查询的配置选项。
type QueryOption func(*queryOptions)

type queryOptions struct {
	coldLoad bool
}

// WithColdLoad 让 QueryWithLogicalExpire 在 key 完全不存在时同步回源并写入。
// 默认行为是直接返回不存在，依赖预热保证热点 key 常驻。
func WithColdLoad() QueryOption {
	return func(o *queryOptions) {
		o.coldLoad = true
	}
}
