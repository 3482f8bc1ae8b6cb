package xdlock

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript 比较并删除锁。
// 返回 1 表示成功释放，0 表示锁已不属于当前持有者（过期或被抢走）。
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// =============================================================================
// Mutex - 基于 SET NX PX 的简单互斥锁
// =============================================================================

// Mutex 基于单个 Redis 节点 SET NX 的非阻塞互斥锁。
//
// 每个 Mutex 在构造时生成一个 uuid 作为进程标识，每次获取再追加一个
// 单调递增序号，组成本次获取的持有者 token，封装在返回的 Lease 中。
// 同一个 Mutex 可以被多个 goroutine 共享，不同获取之间互不干扰。
//
// 锁不可重入：对已持有的 name 再次 TryLock 会失败。
// TTL 是持有者崩溃时唯一的兜底释放机制，调用方需保证 TTL 大于临界区耗时。
type Mutex struct {
	client  redis.UniversalClient
	options *simpleOptions

	instance string
	seq      atomic.Uint64
}

// Lease 表示一次成功的 TryLock。
type Lease struct {
	m     *Mutex
	key   string
	token string
}

// NewMutex 创建简单互斥锁。
func NewMutex(client redis.UniversalClient, opts ...SimpleOption) (*Mutex, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	options := defaultSimpleOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Mutex{
		client:   client,
		options:  options,
		instance: uuid.NewString(),
	}, nil
}

// TryLock 尝试获取 name 对应的锁，ttl 为兜底过期时间。
//
// 成功时返回 Lease；锁被占用时返回 (nil, nil)。
// ttl <= 0 时使用 WithDefaultTTL 配置的默认值。
func (m *Mutex) TryLock(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if err := validateKey(name); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = m.options.DefaultTTL
	}

	key := m.options.KeyPrefix + name
	token := m.instance + "-" + strconv.FormatUint(m.seq.Add(1), 10)

	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lease{m: m, key: key, token: token}, nil
}

// Release 使用显式 token 释放 name 对应的锁。
//
// 只有存储值与 token 完全一致时才删除并返回 true；
// 否则（未持有、已过期、已被他人重新获取）为 no-op，返回 (false, nil)。
func (m *Mutex) Release(ctx context.Context, name, token string) (bool, error) {
	return m.release(ctx, m.options.KeyPrefix+name, token)
}

func (m *Mutex) release(ctx context.Context, key, token string) (bool, error) {
	// 调用方 ctx 已取消时仍尽力释放，避免锁残留到 TTL 到期
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), m.options.ReleaseTimeout)
		defer cancel()
	}

	n, err := releaseScript.Run(ctx, m.client, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Client 返回底层 Redis 客户端。
func (m *Mutex) Client() redis.UniversalClient {
	return m.client
}

// Release 释放本次获取的锁，语义见 Mutex.Release。
func (l *Lease) Release(ctx context.Context) (bool, error) {
	return l.m.release(ctx, l.key, l.token)
}

// Key 返回带前缀的完整锁 key。
func (l *Lease) Key() string { return l.key }

// Token 返回本次获取的持有者标识。
func (l *Lease) Token() string { return l.token }
