package xcron

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
)

var (
	// ErrNilJob 表示任务为 nil。
	ErrNilJob = errors.New("xcron: job cannot be nil")

	// ErrEmptyName 表示任务名为空。任务名同时是锁键和日志标识。
	ErrEmptyName = errors.New("xcron: job name cannot be empty")

	// ErrNilLocker 表示锁实现为 nil。
	ErrNilLocker = errors.New("xcron: locker cannot be nil")

	// ErrAlreadyRunning 表示 Run 被重复调用。
	ErrAlreadyRunning = errors.New("xcron: scheduler already running")
)

const (
	// DefaultLockTTL 默认任务锁 TTL，应大于任务最长执行时间。
	DefaultLockTTL = 5 * time.Minute

	// DefaultLockTimeout 获取锁的超时时间。
	DefaultLockTimeout = 5 * time.Second
)

type schedulerOptions struct {
	locker   Locker
	logger   xlog.Logger
	observer xmetrics.Observer
	location *time.Location
	parser   cron.ScheduleParser
}

// SchedulerOption 调度器选项
type SchedulerOption func(*schedulerOptions)

func defaultSchedulerOptions() *schedulerOptions {
	return &schedulerOptions{
		locker:   NoopLocker(),
		logger:   xlog.Discard(),
		observer: xmetrics.NoopObserver{},
		location: time.Local,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// WithLocker 设置分布式锁，默认不加锁。
func WithLocker(l Locker) SchedulerOption {
	return func(o *schedulerOptions) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(l xlog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置任务执行的指标观测。
func WithObserver(obs xmetrics.Observer) SchedulerOption {
	return func(o *schedulerOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLocation 设置时区，默认本地时区。
func WithLocation(loc *time.Location) SchedulerOption {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeconds 启用秒级 cron 表达式（6 段）。
func WithSeconds() SchedulerOption {
	return func(o *schedulerOptions) {
		o.parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	}
}

type jobOptions struct {
	timeout     time.Duration
	lockTTL     time.Duration
	lockTimeout time.Duration
	immediate   bool
}

// JobOption 任务选项
type JobOption func(*jobOptions)

func defaultJobOptions() *jobOptions {
	return &jobOptions{
		lockTTL:     DefaultLockTTL,
		lockTimeout: DefaultLockTimeout,
	}
}

// WithTimeout 设置单次执行超时，默认不限。
func WithTimeout(d time.Duration) JobOption {
	return func(o *jobOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLockTTL 设置任务锁 TTL。
func WithLockTTL(d time.Duration) JobOption {
	return func(o *jobOptions) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithImmediate 在调度器启动时立即执行一次。
func WithImmediate() JobOption {
	return func(o *jobOptions) {
		o.immediate = true
	}
}
