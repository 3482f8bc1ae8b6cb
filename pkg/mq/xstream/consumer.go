package xstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
)

const componentName = "xstream"

// pendingID 从 pending 列表头部读取自己已投递未确认的消息。
const pendingID = "0"

// newID 读取从未投递给任何消费者的新消息。
const newID = ">"

// Message stream 中的一条消息。
type Message struct {
	ID     string
	Values map[string]any
}

// Handler 消息处理函数。
// 返回 nil 时消息被 XACK；返回错误时消息保留在 pending 列表，由恢复模式重放。
type Handler func(ctx context.Context, msg Message) error

// State 读取循环的状态。
type State int

const (
	// StateMainRead 阻塞读取新消息。
	StateMainRead State = iota
	// StateRecovery 逐条重放 pending 列表。
	StateRecovery
)

func (s State) String() string {
	switch s {
	case StateMainRead:
		return "main_read"
	case StateRecovery:
		return "recovery"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats 消费统计。
type Stats struct {
	Acked      int64 // 处理成功并确认的消息数
	Failed     int64 // 处理失败次数（同一消息可能多次计入）
	ReadErrors int64 // 读取失败次数
	Recoveries int64 // 进入恢复模式的次数
}

// Consumer 基于 Redis Stream 消费者组的至少一次消费循环。
//
// 循环在两个状态之间切换：
//   - MAIN_READ：XREADGROUP ... > 阻塞读取新消息，处理成功后 XACK；
//     读取或处理失败切换到 RECOVERY
//   - RECOVERY：XREADGROUP ... 0 每次读取一条 pending 消息重放，成功后 XACK；
//     失败按退避策略等待后重试同一条；pending 为空时回到 MAIN_READ
//
// 失败的消息永远不会被丢弃。Consumer 不负责幂等，Handler 需自行处理重复投递。
type Consumer struct {
	rdb     redis.UniversalClient
	handler Handler
	opts    *options

	running atomic.Bool

	acked      atomic.Int64
	failed     atomic.Int64
	readErrors atomic.Int64
	recoveries atomic.Int64
}

// New 创建消费者，不会访问 Redis。
func New(rdb redis.UniversalClient, handler Handler, opts ...Option) (*Consumer, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Consumer{rdb: rdb, handler: handler, opts: o}, nil
}

// Stream 返回 stream 名称。
func (c *Consumer) Stream() string { return c.opts.stream }

// Group 返回消费者组名称。
func (c *Consumer) Group() string { return c.opts.group }

// Stats 返回消费统计。
func (c *Consumer) Stats() Stats {
	return Stats{
		Acked:      c.acked.Load(),
		Failed:     c.failed.Load(),
		ReadErrors: c.readErrors.Load(),
		Recoveries: c.recoveries.Load(),
	}
}

// EnsureGroup 创建消费者组（stream 不存在时一并创建），组已存在视为成功。
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.opts.stream, c.opts.group, c.opts.startID).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xstream: create group %s/%s: %w", c.opts.stream, c.opts.group, err)
	}
	return nil
}

// Pending 返回消费者组中已投递未确认的消息数。
func (c *Consumer) Pending(ctx context.Context) (int64, error) {
	p, err := c.rdb.XPending(ctx, c.opts.stream, c.opts.group).Result()
	if err != nil {
		return 0, fmt.Errorf("xstream: pending %s/%s: %w", c.opts.stream, c.opts.group, err)
	}
	return p.Count, nil
}

// Run 运行读取循环，直到 ctx 取消时返回 ctx.Err()。
//
// 启动时先确保消费者组存在，失败则直接返回。
// 启动后先进入 RECOVERY，重放上次进程退出前遗留的 pending 消息。
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	log := c.opts.logger.With(xlog.Component(componentName))
	log.Info(ctx, "stream consumer started",
		slog.String("stream", c.opts.stream),
		slog.String("group", c.opts.group),
		slog.String("consumer", c.opts.consumer))

	state := StateRecovery
	c.notify(state)
	for {
		if ctx.Err() != nil {
			log.Info(ctx, "stream consumer stopped", xlog.Count(c.acked.Load()))
			return ctx.Err()
		}

		var next State
		switch state {
		case StateMainRead:
			next = c.mainRead(ctx, log)
		default:
			next = c.recoverPending(ctx, log)
		}
		if next != state {
			if next == StateRecovery {
				c.recoveries.Add(1)
			}
			state = next
			c.notify(state)
		}
	}
}

func (c *Consumer) notify(s State) {
	if c.opts.onState != nil {
		c.opts.onState(s)
	}
}

// mainRead 执行一次新消息读取，返回下一个状态。
func (c *Consumer) mainRead(ctx context.Context, log xlog.Logger) State {
	msgs, err := c.read(ctx, newID, c.opts.count, c.opts.block)
	if err != nil {
		if ctx.Err() != nil {
			return StateMainRead
		}
		c.readErrors.Add(1)
		log.Error(ctx, "read stream failed", xlog.Err(err))
		return StateRecovery
	}

	for _, msg := range msgs {
		if err := c.process(ctx, msg); err != nil {
			log.Error(ctx, "handle message failed", xlog.MessageID(msg.ID), xlog.Err(err))
			return StateRecovery
		}
	}
	return StateMainRead
}

// recoverPending 逐条重放 pending 消息，列表为空时返回 StateMainRead。
func (c *Consumer) recoverPending(ctx context.Context, log xlog.Logger) State {
	attempt := 0
	for ctx.Err() == nil {
		msgs, err := c.read(ctx, pendingID, 1, -1)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			attempt++
			c.readErrors.Add(1)
			log.Error(ctx, "read pending failed", xlog.Err(err))
			_ = xretry.Sleep(ctx, c.opts.backoff.NextDelay(attempt))
			continue
		}
		if len(msgs) == 0 {
			return StateMainRead
		}

		msg := msgs[0]
		if err := c.process(ctx, msg); err != nil {
			attempt++
			log.Warn(ctx, "replay pending message failed",
				xlog.MessageID(msg.ID), xlog.Count(int64(attempt)), xlog.Err(err))
			_ = xretry.Sleep(ctx, c.opts.backoff.NextDelay(attempt))
			continue
		}
		attempt = 0
	}
	return StateRecovery
}

// process 调用 handler，成功后确认。
//
// 已被 XDEL/XTRIM 删除的消息在 pending 列表中以空字段出现，直接确认跳过。
func (c *Consumer) process(ctx context.Context, msg Message) error {
	if len(msg.Values) > 0 {
		if err := c.safeHandle(ctx, msg); err != nil {
			c.failed.Add(1)
			return err
		}
	}
	return c.ack(ctx, msg.ID)
}

func (c *Consumer) safeHandle(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xstream: handler panic: %v", r)
		}
	}()
	return c.handler(ctx, msg)
}

// ack 确认消息。handler 已经成功时 ctx 可能恰好被取消，仍使用独立超时完成确认。
func (c *Consumer) ack(ctx context.Context, id string) error {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ackTimeout)
	defer cancel()
	if err := c.rdb.XAck(actx, c.opts.stream, c.opts.group, id).Err(); err != nil {
		return fmt.Errorf("xstream: ack %s: %w", id, err)
	}
	c.acked.Add(1)
	return nil
}

// read 执行 XREADGROUP。block < 0 表示不阻塞；超时无消息时返回空切片。
func (c *Consumer) read(ctx context.Context, id string, count int64, block time.Duration) ([]Message, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.group,
		Consumer: c.opts.consumer,
		Streams:  []string{c.opts.stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			msgs = append(msgs, Message{ID: m.ID, Values: m.Values})
		}
	}
	return msgs, nil
}
