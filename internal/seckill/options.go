package seckill

import (
	"time"

	"github.com/omeyang/xseckill/pkg/mq/xstream"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
	"github.com/omeyang/xseckill/pkg/resilience/xlimit"
)

// 熔断默认值：连续 5 次 Redis 故障后打开，10 秒后半开探测。
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 10 * time.Second
)

// Option 定义 Coordinator 的配置选项。
type Option func(*options)

type options struct {
	stream           string
	limiter          *xlimit.Limiter
	logger           xlog.Logger
	observer         xmetrics.Observer
	breakerThreshold uint32
	breakerTimeout   time.Duration
	now              func() time.Time
}

func defaultOptions() *options {
	return &options{
		stream:           xstream.DefaultStream,
		logger:           xlog.Discard(),
		observer:         xmetrics.NoopObserver{},
		breakerThreshold: DefaultBreakerThreshold,
		breakerTimeout:   DefaultBreakerTimeout,
		now:              time.Now,
	}
}

// WithStream 设置订单 stream 名称，必须与消费端一致。
func WithStream(name string) Option {
	return func(o *options) {
		if name != "" {
			o.stream = name
		}
	}
}

// WithLimiter 按用户限流，key 为用户 ID。
func WithLimiter(l *xlimit.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 记录每次下单的结果分布和耗时。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithBreaker 设置熔断阈值和打开时长。
func WithBreaker(threshold uint32, timeout time.Duration) Option {
	return func(o *options) {
		if threshold > 0 {
			o.breakerThreshold = threshold
		}
		if timeout > 0 {
			o.breakerTimeout = timeout
		}
	}
}

// WithClock 设置判断秒杀窗口用的时钟，测试用。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
