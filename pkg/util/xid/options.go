package xid

import "time"

// Option 定义 Generator 的配置选项。
type Option func(*options)

type options struct {
	keyPrefix  string
	counterTTL time.Duration
	now        func() time.Time
}

func defaultOptions() *options {
	return &options{
		keyPrefix:  DefaultKeyPrefix,
		counterTTL: DefaultCounterTTL,
		now:        time.Now,
	}
}

// WithKeyPrefix 设置计数器 key 前缀，默认 "icr:"。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithCounterTTL 设置日计数器过期时间，0 表示不过期。
func WithCounterTTL(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.counterTTL = d
		}
	}
}

// WithClock 替换时间源，用于测试。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
