package xcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
	"github.com/omeyang/xseckill/pkg/util/xpool"
)

// nullPlaceholder 空值占位，表示数据源中确认不存在。
const nullPlaceholder = ""

// Entry 逻辑过期策略下的缓存结构。
//
// Data 为 null 表示数据源中不存在；ExpireTime 为毫秒时间戳，
// 由它而不是 Redis TTL 决定数据是否陈旧。
type Entry struct {
	Data       json.RawMessage `json:"data"`
	ExpireTime int64           `json:"expire_time"`
}

// expired 判断 Entry 在 now 时刻是否已逻辑过期。
func (e *Entry) expired(now time.Time) bool {
	return now.UnixMilli() >= e.ExpireTime
}

// absent 判断 Entry 是否为空值占位。
func (e *Entry) absent() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

// Loader 回源函数，ok=false 表示数据源中不存在。
type Loader[K comparable, V any] func(ctx context.Context, id K) (v V, ok bool, err error)

// Client 带三类防护的 Redis 缓存客户端：
//   - 穿透：不存在的数据写入空值占位
//   - 击穿：逻辑过期 + 重建锁 + 后台 worker 异步重建
//   - 雪崩：写入 TTL 附加随机抖动
//
// Client 可被多个 goroutine 并发使用。
type Client struct {
	rdb     redis.UniversalClient
	options *Options

	locker *xdlock.Mutex
	pool   *xpool.Pool[rebuildTask]
	group  singleflight.Group
	nulls  *ristretto.Cache[string, struct{}]

	rebuilds atomic.Int64
	closed   atomic.Bool
}

// New 创建缓存客户端。
//
// 重建 worker 在 New 返回时已启动，使用完毕必须调用 Close。
func New(rdb redis.UniversalClient, opts ...Option) (*Client, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	locker, err := xdlock.NewMutex(rdb, xdlock.WithDefaultTTL(options.RebuildLockTTL))
	if err != nil {
		return nil, fmt.Errorf("xcache: create rebuild lock: %w", err)
	}

	c := &Client{
		rdb:     rdb,
		options: options,
		locker:  locker,
	}

	if options.LocalNullTTL > 0 {
		nulls, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
			NumCounters: options.LocalNullMaxCost * 10,
			MaxCost:     options.LocalNullMaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("xcache: create local null cache: %w", err)
		}
		c.nulls = nulls
	}

	pool, err := xpool.New(options.RebuildWorkers, options.RebuildQueueSize, c.rebuild, xpool.WithName("xcache-rebuild"))
	if err != nil {
		if c.nulls != nil {
			c.nulls.Close()
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.pool = pool
	return c, nil
}

// Client 返回底层 Redis 客户端。
func (c *Client) Client() redis.UniversalClient {
	return c.rdb
}

// Rebuilds 返回已调度的重建任务数。
func (c *Client) Rebuilds() int64 {
	return c.rebuilds.Load()
}

// Close 停止接收重建任务，等待已排队的任务完成。
//
// ctx 到期时立即返回，残留任务在后台继续。
// 不会关闭底层 Redis 客户端。
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.pool.Shutdown(ctx)
	if c.nulls != nil {
		c.nulls.Close()
	}
	return err
}

// =============================================================================
// 写入
// =============================================================================

// Set 将 value 编码为 JSON 后写入，过期时间为 ttl 加随机抖动。
// ttl 必须为正，不写入永不过期的 key。
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidConfig, ttl)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("xcache: encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, c.jittered(ttl)).Err()
}

// SetWithLogicalExpire 将 value 包装为 Entry 写入，不设置 Redis TTL。
// value 为 nil 时写入逻辑过期的空值占位。
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	entry := Entry{ExpireTime: c.options.Clock().Add(ttl).UnixMilli()}
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("xcache: encode %s: %w", key, err)
		}
		entry.Data = data
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("xcache: encode entry %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, raw, 0).Err()
}

// SetNull 写入空值占位，过期时间为 NullTTL 加随机抖动。
func (c *Client) SetNull(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := c.rdb.Set(ctx, key, nullPlaceholder, c.jittered(c.options.NullTTL)).Err(); err != nil {
		return err
	}
	c.rememberNull(key)
	return nil
}

// Delete 删除缓存，用于写库后的失效。
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if c.nulls != nil {
		for _, k := range keys {
			c.nulls.Del(k)
		}
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// jittered 返回 ttl + [0, JitterMax) 的随机抖动。
func (c *Client) jittered(ttl time.Duration) time.Duration {
	if c.options.JitterMax <= 0 {
		return ttl
	}
	return ttl + rand.N(c.options.JitterMax)
}

// =============================================================================
// 本地空值影子
// =============================================================================

func (c *Client) rememberNull(key string) {
	if c.nulls == nil {
		return
	}
	c.nulls.SetWithTTL(key, struct{}{}, 1, c.options.LocalNullTTL)
}

func (c *Client) knownNull(key string) bool {
	if c.nulls == nil {
		return false
	}
	_, ok := c.nulls.Get(key)
	return ok
}

// waitLocal 等待本地空值影子的异步写入完成，测试用。
func (c *Client) waitLocal() {
	if c.nulls != nil {
		c.nulls.Wait()
	}
}

// =============================================================================
// 读取
// =============================================================================

// getRaw 读取原始值，key 不存在时 found=false。
func (c *Client) getRaw(ctx context.Context, key string) (raw string, found bool, err error) {
	raw, err = c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// getEntry 读取逻辑过期 Entry。
func (c *Client) getEntry(ctx context.Context, key string) (*Entry, bool, error) {
	raw, found, err := c.getRaw(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, key, err)
	}
	return &e, true, nil
}

// loadCtx 返回脱离调用方取消链、带独立超时的回源 ctx。
// singleflight 中首个调用者取消不会影响其他等待者。
func (c *Client) loadCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.options.LoadTimeout == 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, c.options.LoadTimeout)
}

// collapse 以 key 合并同进程内的并发回源。
// 每个调用者可以独立地因 ctx 取消而返回，回源本身继续供其他等待者使用。
func (c *Client) collapse(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := c.loadCtx(ctx)
		defer cancel()
		return fn(lctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}
