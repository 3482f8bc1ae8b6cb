// Package xdlock 提供基于 Redis 的分布式互斥锁。
//
// 两种锁对应两类场景：
//
//   - Mutex：单节点 SET NX PX + Lua 比较删除，非阻塞、不可重入。
//     TryLock 返回 Lease，Release 只删除 token 一致的锁。
//     用于缓存重建等"抢不到就走"的场景。
//   - Factory：基于 redsync 的句柄式锁，支持 Lock 阻塞重试、Extend 续期、
//     Redlock 多节点。用于订单落库时的按用户互斥。
//
// 两者默认 key 前缀均为 "lock:"，与业务 key 命名空间互不干扰，可独立清理。
//
// # 租约
//
// 锁的 TTL 是持有者崩溃时唯一的兜底释放机制。TTL 过短会导致临界区尚未结束
// 锁就被他人获取，调用方需按临界区的最坏耗时设置。
//
// # 示例
//
//	mu, _ := xdlock.NewMutex(rdb)
//	lease, err := mu.TryLock(ctx, "cache:shop:1", 10*time.Second)
//	if err != nil || lease == nil {
//	    return
//	}
//	defer lease.Release(ctx)
package xdlock
