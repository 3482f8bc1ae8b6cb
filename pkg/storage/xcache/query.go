package xcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// Key 拼接缓存 key：prefix + id。
func Key[K comparable](prefix string, id K) string {
	return prefix + fmt.Sprint(id)
}

// loaded 回源结果，经 singleflight 传递。
type loaded[V any] struct {
	value V
	ok    bool
}

// callLoader 调用 loader 并把 panic 转换为 ErrLoadPanic。
func callLoader[K comparable, V any](ctx context.Context, loader Loader[K, V], id K) (v V, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrLoadPanic, r, debug.Stack())
		}
	}()
	return loader(ctx, id)
}

// =============================================================================
// 缓存穿透：空值占位
// =============================================================================

// QueryWithPassThrough 以空值占位防穿透的方式查询。
//
//   - 命中数据：解码返回 (v, true, nil)
//   - 命中空值占位：返回 (零值, false, nil)，不调用 loader
//   - 未命中：调用 loader（同进程同 key 并发合并）；不存在则写入空值占位，
//     存在则以 ttl 加抖动写入
//
// loader 失败返回包装了 ErrLoaderFailed 的错误，不写入任何缓存。
func QueryWithPassThrough[K comparable, V any](
	ctx context.Context, c *Client, prefix string, id K, loader Loader[K, V], ttl time.Duration,
) (V, bool, error) {
	var zero V
	if loader == nil {
		return zero, false, ErrNilLoader
	}
	if ttl <= 0 {
		return zero, false, fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidConfig, ttl)
	}
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	key := Key(prefix, id)

	if c.knownNull(key) {
		return zero, false, nil
	}

	raw, found, err := c.getRaw(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("xcache: get %s: %w", key, err)
	}
	if found {
		return decodeRaw[V](c, key, raw)
	}

	res, err := c.collapse(ctx, key, func(lctx context.Context) (any, error) {
		v, ok, err := callLoader(lctx, loader, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoaderFailed, key, err)
		}
		if !ok {
			if err := c.SetNull(lctx, key); err != nil {
				c.options.Logger.Warn(lctx, "xcache: write null placeholder failed",
					xlog.CacheKey(key), xlog.Err(err))
			}
			return loaded[V]{}, nil
		}
		if err := c.Set(lctx, key, v, ttl); err != nil {
			c.options.Logger.Warn(lctx, "xcache: write value failed",
				xlog.CacheKey(key), xlog.Err(err))
		}
		return loaded[V]{value: v, ok: true}, nil
	})
	if err != nil {
		return zero, false, err
	}
	r, _ := res.(loaded[V])
	return r.value, r.ok, nil
}

// decodeRaw 解码 Set 写入的原始 JSON，空值占位返回不存在。
func decodeRaw[V any](c *Client, key, raw string) (V, bool, error) {
	var v V
	if raw == nullPlaceholder {
		c.rememberNull(key)
		return v, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, key, err)
	}
	return v, true, nil
}

// =============================================================================
// 缓存击穿：逻辑过期
// =============================================================================

// QueryWithLogicalExpire 以逻辑过期防击穿的方式查询。
//
//   - 未命中：返回 (零值, false, nil)，不回源（缓存需预热，可用 WithColdLoad 改变）
//   - 未过期：直接返回
//   - 已过期：尝试获取 key 的重建锁，成功则提交后台重建；
//     无论是否抢到锁，都立即返回旧数据
//
// 后台重建的失败只记录日志，不影响调用方。
func QueryWithLogicalExpire[K comparable, V any](
	ctx context.Context, c *Client, prefix string, id K, loader Loader[K, V], ttl time.Duration, opts ...QueryOption,
) (V, bool, error) {
	var zero V
	if loader == nil {
		return zero, false, ErrNilLoader
	}
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}
	key := Key(prefix, id)

	entry, found, err := c.getEntry(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("xcache: get %s: %w", key, err)
	}
	if !found {
		if qo.coldLoad {
			return coldLoad(ctx, c, key, id, loader, ttl)
		}
		return zero, false, nil
	}

	if entry.expired(c.options.Clock()) {
		c.scheduleRebuild(ctx, key, func(rctx context.Context) error {
			return rebuildEntry(rctx, c, key, id, loader, ttl)
		})
	}
	return decodeEntry[V](key, entry)
}

// coldLoad 同步回源并写入逻辑过期 Entry。
func coldLoad[K comparable, V any](
	ctx context.Context, c *Client, key string, id K, loader Loader[K, V], ttl time.Duration,
) (V, bool, error) {
	var zero V
	res, err := c.collapse(ctx, key, func(lctx context.Context) (any, error) {
		// 等待期间可能已被其他进程写入
		if entry, found, err := c.getEntry(lctx, key); err == nil && found {
			v, ok, err := decodeEntry[V](key, entry)
			if err != nil {
				return nil, err
			}
			return loaded[V]{value: v, ok: ok}, nil
		}
		v, ok, err := callLoader(lctx, loader, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoaderFailed, key, err)
		}
		var payload any
		if ok {
			payload = v
		}
		if err := c.SetWithLogicalExpire(lctx, key, payload, ttl); err != nil {
			c.options.Logger.Warn(lctx, "xcache: write logical entry failed",
				xlog.CacheKey(key), xlog.Err(err))
		}
		return loaded[V]{value: v, ok: ok}, nil
	})
	if err != nil {
		return zero, false, err
	}
	r, _ := res.(loaded[V])
	return r.value, r.ok, nil
}

func decodeEntry[V any](key string, e *Entry) (V, bool, error) {
	var v V
	if e.absent() {
		return v, false, nil
	}
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return v, false, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, key, err)
	}
	return v, true, nil
}

// rebuildEntry 在持有重建锁的情况下回源并刷新 Entry。
func rebuildEntry[K comparable, V any](
	ctx context.Context, c *Client, key string, id K, loader Loader[K, V], ttl time.Duration,
) error {
	// double-check：拿到锁之前可能已有其他 worker 完成重建
	entry, found, err := c.getEntry(ctx, key)
	if err != nil {
		return err
	}
	if found && !entry.expired(c.options.Clock()) {
		return nil
	}

	v, ok, err := callLoader(ctx, loader, id)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoaderFailed, key, err)
	}
	var payload any
	if ok {
		payload = v
	}
	return c.SetWithLogicalExpire(ctx, key, payload, ttl)
}

// =============================================================================
// 后台重建
// =============================================================================

// rebuildTask 提交到 worker pool 的重建任务，持有该 key 的重建锁。
type rebuildTask struct {
	key   string
	lease *xdlock.Lease
	ctx   context.Context
	run   func(ctx context.Context) error
}

// scheduleRebuild 尝试获取重建锁并提交任务，不阻塞调用方。
func (c *Client) scheduleRebuild(ctx context.Context, key string, run func(ctx context.Context) error) {
	lease, err := c.locker.TryLock(ctx, key, c.options.RebuildLockTTL)
	if err != nil {
		c.options.Logger.Warn(ctx, "xcache: acquire rebuild lock failed",
			xlog.CacheKey(key), xlog.Err(err))
		return
	}
	if lease == nil {
		// 其他 worker 正在重建
		return
	}

	task := rebuildTask{key: key, lease: lease, ctx: context.WithoutCancel(ctx), run: run}
	if err := c.pool.Submit(task); err != nil {
		c.options.Logger.Warn(ctx, "xcache: submit rebuild rejected",
			xlog.CacheKey(key), xlog.Err(err))
		c.releaseLease(task.ctx, lease)
		return
	}
	c.rebuilds.Add(1)
}

// rebuild 是 worker pool 的处理函数，任何情况下都会释放重建锁。
func (c *Client) rebuild(task rebuildTask) {
	ctx, cancel := c.loadCtx(task.ctx)
	defer cancel()
	defer c.releaseLease(ctx, task.lease)
	defer func() {
		if r := recover(); r != nil {
			c.options.Logger.Stack(ctx, "xcache: rebuild panic recovered",
				xlog.CacheKey(task.key), slog.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := task.run(ctx); err != nil {
		c.options.Logger.Error(ctx, "xcache: rebuild failed",
			xlog.CacheKey(task.key), xlog.Err(err), xlog.Duration(time.Since(start)))
		return
	}
	c.options.Logger.Debug(ctx, "xcache: rebuilt",
		xlog.CacheKey(task.key), xlog.Duration(time.Since(start)))
}

func (c *Client) releaseLease(ctx context.Context, lease *xdlock.Lease) {
	if _, err := lease.Release(ctx); err != nil {
		c.options.Logger.Warn(ctx, "xcache: release rebuild lock failed",
			xlog.CacheKey(lease.Key()), xlog.Err(err))
	}
}
