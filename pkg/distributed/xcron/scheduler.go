package xcron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xmetrics"
)

// JobID 任务唯一标识，复用 cron.EntryID。
type JobID = cron.EntryID

// Stats 执行统计快照
type Stats struct {
	Executions int64
	Failures   int64
	Skips      int64 // 锁被其他实例持有或锁服务异常
	Panics     int64
}

// Scheduler 基于 robfig/cron/v3 的调度器，增加分布式锁、超时和 panic 恢复。
type Scheduler struct {
	cron *cron.Cron
	opts *schedulerOptions

	mu        sync.Mutex
	baseCtx   context.Context
	running   bool
	immediate []*job
	wg        sync.WaitGroup

	executions atomic.Int64
	failures   atomic.Int64
	skips      atomic.Int64
	panics     atomic.Int64
}

// New 创建调度器，默认不加锁、本地时区、分钟级精度。
func New(opts ...SchedulerOption) *Scheduler {
	o := defaultSchedulerOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(o.location), cron.WithParser(o.parser)),
		opts:    o,
		baseCtx: context.Background(),
	}
}

// AddFunc 添加任务。name 是锁键和日志标识，多副本下同名任务同一时刻只执行一次。
//
//	id, err := s.AddFunc("@every 1m", "warm-hot-shops", warm, xcron.WithTimeout(30*time.Second))
func (s *Scheduler) AddFunc(spec, name string, fn func(ctx context.Context) error, opts ...JobOption) (JobID, error) {
	if fn == nil {
		return 0, ErrNilJob
	}
	if name == "" {
		return 0, ErrEmptyName
	}
	jo := defaultJobOptions()
	for _, opt := range opts {
		opt(jo)
	}

	j := &job{name: name, fn: fn, opts: jo, s: s}
	id, err := s.cron.AddJob(spec, j)
	if err != nil {
		return 0, fmt.Errorf("xcron: failed to add job %s: %w", name, err)
	}

	if jo.immediate {
		s.mu.Lock()
		s.immediate = append(s.immediate, j)
		s.mu.Unlock()
	}
	return id, nil
}

// Entries 返回所有已注册的任务。
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// Stats 返回执行统计快照。
func (s *Scheduler) Stats() Stats {
	return Stats{
		Executions: s.executions.Load(),
		Failures:   s.failures.Load(),
		Skips:      s.skips.Load(),
		Panics:     s.panics.Load(),
	}
}

// Run 启动调度并阻塞到 ctx 结束。
// 返回前取消运行中任务的 context，并等待它们退出。
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.baseCtx = runCtx
	immediate := s.immediate
	s.mu.Unlock()
	defer cancel()

	s.cron.Start()
	for _, j := range immediate {
		s.wg.Go(j.Run)
	}

	<-ctx.Done()
	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// job 实现 cron.Job：加锁、超时、panic 恢复、日志和指标。
type job struct {
	name string
	fn   func(ctx context.Context) error
	opts *jobOptions
	s    *Scheduler
}

// Run 实现 cron.Job。
func (j *job) Run() {
	base := j.s.context()
	if base.Err() != nil {
		return
	}
	log := j.s.opts.logger.With(slog.String("job", j.name))

	handle, ok := j.acquire(base, log)
	if !ok {
		j.s.skips.Add(1)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(base), DefaultLockTimeout)
		defer cancel()
		if err := handle.Unlock(ctx); err != nil {
			log.Warn(ctx, "failed to release job lock", xlog.Err(err))
		}
	}()

	ctx := base
	if j.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.timeout)
		defer cancel()
	}

	ctx, span := xmetrics.Start(ctx, j.s.opts.observer, xmetrics.SpanOptions{
		Component: "xcron",
		Operation: j.name,
	})
	start := time.Now()
	err := j.execute(ctx, log)
	span.End(xmetrics.Result{Err: err})

	j.s.executions.Add(1)
	if err != nil {
		j.s.failures.Add(1)
		log.Error(ctx, "job failed", xlog.Err(err), xlog.Duration(time.Since(start)))
		return
	}
	log.Debug(ctx, "job finished", xlog.Duration(time.Since(start)))
}

func (j *job) acquire(ctx context.Context, log xlog.Logger) (LockHandle, bool) {
	lockCtx, cancel := context.WithTimeout(ctx, j.opts.lockTimeout)
	defer cancel()

	handle, err := j.s.opts.locker.TryLock(lockCtx, j.name, j.opts.lockTTL)
	if err != nil {
		log.Warn(ctx, "failed to acquire job lock", xlog.Err(err))
		return nil, false
	}
	if handle == nil {
		log.Debug(ctx, "job lock held elsewhere, skipping")
		return nil, false
	}
	return handle, true
}

func (j *job) execute(ctx context.Context, log xlog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.s.panics.Add(1)
			log.Stack(ctx, "job panicked", slog.Any("panic", r))
			err = fmt.Errorf("xcron: job %s panicked: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}
