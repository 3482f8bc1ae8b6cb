package xstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
)

// 默认配置。
const (
	DefaultStream        = "stream.orders"
	DefaultGroup         = "g1"
	DefaultConsumer      = "c1"
	DefaultCount         = 1
	DefaultBlock         = 2 * time.Second
	DefaultRecoveryDelay = 200 * time.Millisecond
	DefaultAckTimeout    = 5 * time.Second
)

// Option 定义 Consumer 的配置选项。
type Option func(*options)

type options struct {
	stream     string
	group      string
	consumer   string
	startID    string
	count      int64
	block      time.Duration
	ackTimeout time.Duration
	backoff    xretry.BackoffPolicy
	logger     xlog.Logger
	onState    func(State)
}

func defaultOptions() *options {
	return &options{
		stream:     DefaultStream,
		group:      DefaultGroup,
		consumer:   DefaultConsumer,
		startID:    "0",
		count:      DefaultCount,
		block:      DefaultBlock,
		ackTimeout: DefaultAckTimeout,
		backoff:    xretry.NewFixedBackoff(DefaultRecoveryDelay),
		logger:     xlog.Discard(),
	}
}

func (o *options) validate() error {
	switch {
	case strings.TrimSpace(o.stream) == "":
		return fmt.Errorf("%w: empty stream", ErrInvalidConfig)
	case strings.TrimSpace(o.group) == "":
		return fmt.Errorf("%w: empty group", ErrInvalidConfig)
	case strings.TrimSpace(o.consumer) == "":
		return fmt.Errorf("%w: empty consumer name", ErrInvalidConfig)
	case o.count <= 0:
		return fmt.Errorf("%w: count must be positive", ErrInvalidConfig)
	case o.block <= 0:
		return fmt.Errorf("%w: block must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithStream 设置 stream 名称，默认 "stream.orders"。
func WithStream(name string) Option {
	return func(o *options) { o.stream = name }
}

// WithGroup 设置消费者组名称，默认 "g1"。
func WithGroup(name string) Option {
	return func(o *options) { o.group = name }
}

// WithConsumerName 设置组内消费者名称，默认 "c1"。
// 多进程部署时每个进程应使用不同名称，否则会共享同一个 pending 列表。
func WithConsumerName(name string) Option {
	return func(o *options) { o.consumer = name }
}

// WithGroupStartID 设置创建消费者组时的起始 ID，默认 "0"（消费 stream 中已有的全部消息）。
// 使用 "$" 只消费建组之后的新消息。
func WithGroupStartID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.startID = id
		}
	}
}

// WithCount 设置单次读取的最大消息数，默认 1。
func WithCount(n int64) Option {
	return func(o *options) { o.count = n }
}

// WithBlock 设置读取新消息的最长阻塞时间，默认 2s。
func WithBlock(d time.Duration) Option {
	return func(o *options) { o.block = d }
}

// WithRecoveryBackoff 设置恢复模式下处理失败后的等待策略，默认固定 200ms。
func WithRecoveryBackoff(b xretry.BackoffPolicy) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithLogger 设置日志记录器，默认丢弃。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStateHook 设置状态切换回调，在读取循环的 goroutine 中同步调用。
func WithStateHook(fn func(State)) Option {
	return func(o *options) { o.onState = fn }
}
