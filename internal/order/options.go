package order

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
)

// Option 定义 Service 的配置选项。
type Option func(*options)

type options struct {
	lockPrefix       string
	lockTTL          time.Duration
	commitTries      int
	deadLetter       redis.UniversalClient
	deadLetterStream string
	logger           xlog.Logger
	observer         xmetrics.Observer
}

func defaultOptions() *options {
	return &options{
		lockPrefix:       DefaultLockPrefix,
		lockTTL:          DefaultLockTTL,
		commitTries:      DefaultCommitTries,
		deadLetterStream: DefaultDeadLetterStream,
		logger:           xlog.Discard(),
		observer:         xmetrics.NoopObserver{},
	}
}

// WithLockTTL 设置用户锁 TTL，应大于一次落库的最长耗时。
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithCommitTries 设置单次 Handle 内的落库尝试次数，默认 3。
func WithCommitTries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.commitTries = n
		}
	}
}

// WithDeadLetter 无法解析的消息写入 rdb 上的 stream 后确认。
// 未配置时无法解析的消息保留在 pending 列表。
func WithDeadLetter(rdb redis.UniversalClient, stream string) Option {
	return func(o *options) {
		o.deadLetter = rdb
		if stream != "" {
			o.deadLetterStream = stream
		}
	}
}

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
