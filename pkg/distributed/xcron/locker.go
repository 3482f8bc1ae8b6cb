package xcron

import (
	"context"
	"errors"
	"time"

	"github.com/omeyang/xseckill/pkg/distributed/xdlock"
)

// ErrLockNotHeld 表示释放时锁已过期或被其他实例持有。
var ErrLockNotHeld = errors.New("xcron: lock not held by this instance")

// LockHandle 表示一次成功的锁获取，只能释放本次获取的锁。
type LockHandle interface {
	Unlock(ctx context.Context) error
	Key() string
}

// Locker 分布式锁接口，保证多副本下同一时刻只有一个实例执行任务。
//
// TryLock 必须非阻塞；锁被他人持有时返回 (nil, nil)，
// 只有锁服务异常才返回错误。
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (LockHandle, error)
}

// NoopLocker 返回不加锁的实现，用于单副本部署。
func NoopLocker() Locker { return noopLocker{} }

type noopLocker struct{}

func (noopLocker) TryLock(_ context.Context, key string, _ time.Duration) (LockHandle, error) {
	return noopHandle(key), nil
}

type noopHandle string

func (noopHandle) Unlock(context.Context) error { return nil }
func (h noopHandle) Key() string                { return string(h) }

// MutexLocker 将 xdlock.Mutex 适配为 Locker。
type MutexLocker struct {
	mutex  *xdlock.Mutex
	prefix string
}

// DefaultLockPrefix MutexLocker 的默认任务锁前缀，最终键为 "lock:cron:{job}"。
const DefaultLockPrefix = "cron:"

// NewMutexLocker 创建基于 xdlock.Mutex 的 Locker。
func NewMutexLocker(m *xdlock.Mutex) (*MutexLocker, error) {
	if m == nil {
		return nil, ErrNilLocker
	}
	return &MutexLocker{mutex: m, prefix: DefaultLockPrefix}, nil
}

// TryLock 实现 Locker。
func (l *MutexLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (LockHandle, error) {
	lease, err := l.mutex.TryLock(ctx, l.prefix+key, ttl)
	if err != nil || lease == nil {
		return nil, err
	}
	return leaseHandle{lease}, nil
}

type leaseHandle struct {
	lease *xdlock.Lease
}

func (h leaseHandle) Unlock(ctx context.Context) error {
	ok, err := h.lease.Release(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotHeld
	}
	return nil
}

func (h leaseHandle) Key() string { return h.lease.Key() }

var (
	_ Locker = noopLocker{}
	_ Locker = (*MutexLocker)(nil)
)
