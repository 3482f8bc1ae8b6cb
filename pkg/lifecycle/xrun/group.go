package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// Group 基于 errgroup + context 管理多个服务的并发运行和协调关闭。
//
// 任一服务返回错误或 context 被取消时，所有服务都会收到取消信号。
// Go 和 Cancel 可并发调用，Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 context 在任一服务出错时被取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 以 name 启动一个服务，启停和异常退出都会记录日志。
//
// fn 应监听 ctx.Done() 并在取消后返回；返回非 nil 错误会取消其他服务。
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		log := g.opts.logger.With(slog.String("group", g.opts.name), slog.String("service", name))
		log.Debug(g.ctx, "service starting")

		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(g.ctx, "service exited with error", xlog.Err(err))
		} else {
			log.Debug(g.ctx, "service stopped")
		}
		return err
	})
}

// Wait 等待所有服务退出。
//
// Cancel(cause) 或信号设置的退出原因优先返回；普通取消返回 nil；
// 服务内部产生的 context.Canceled 原样返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()
	g.opts.logger.Debug(g.causeCtx, "all services stopped", slog.String("group", g.opts.name))

	cause := func() error {
		if g.causeCtx.Err() == nil {
			return nil
		}
		if c := context.Cause(g.causeCtx); c != nil && !errors.Is(c, context.Canceled) {
			return c
		}
		return nil
	}

	if errors.Is(err, context.Canceled) {
		if g.causeCtx.Err() != nil {
			return cause()
		}
		return err
	}
	if err == nil {
		return cause()
	}
	return err
}

// Cancel 主动取消所有服务，cause 会作为 Wait 的返回值。
// cause 不应包装 context.Canceled，否则会被当作普通取消过滤掉。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Service 可由 Run 管理的服务。
type Service interface {
	// Name 用于日志标识。
	Name() string
	// Run 阻塞直到 ctx 被取消或发生错误。
	Run(ctx context.Context) error
}

type namedService struct {
	name string
	fn   func(ctx context.Context) error
}

func (s namedService) Name() string                  { return s.name }
func (s namedService) Run(ctx context.Context) error { return s.fn(ctx) }

// Named 将函数包装为 Service。
func Named(name string, fn func(ctx context.Context) error) Service {
	return namedService{name: name, fn: fn}
}

// Run 运行服务并监听系统信号，收到信号时返回 *SignalError。
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Named("order-consumer", consumer.Run),
//	    xrun.Named("cron", scheduler.Run),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.eg.Go(func() error { return g.waitSignal(signals) })
	}

	for _, svc := range services {
		if svc == nil {
			g.eg.Go(func() error { return ErrNilService })
			continue
		}
		g.Go(svc.Name(), svc.Run)
	}
	return g.Wait()
}

func (g *Group) waitSignal(signals []os.Signal) error {
	testc := testSigChan(g.ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	var sig os.Signal
	select {
	case sig = <-testc:
	case sig = <-sigCh:
	case <-g.ctx.Done():
		return g.ctx.Err()
	}

	g.opts.logger.Info(g.ctx, "received signal",
		slog.String("group", g.opts.name),
		slog.String("signal", sig.String()),
	)
	g.cancel(&SignalError{Signal: sig})
	return nil
}
