// Package xcache 提供带穿透、击穿、雪崩防护的 Redis 缓存。
//
// # 核心组件
//
//   - Client：持有 Redis 客户端、重建锁（xdlock.Mutex）和重建 worker pool（xpool）
//   - QueryWithPassThrough：空值占位防穿透，未命中时同步回源
//   - QueryWithLogicalExpire：逻辑过期防击穿，过期后由后台 worker 异步重建
//
// # 存储格式
//
// Set 写入的是值本身的 JSON，Redis TTL = ttl + [0, JitterMax) 的随机抖动。
// 空值占位是空字符串，TTL = NullTTL + 抖动。
//
// SetWithLogicalExpire 写入 Entry：
//
//	{"data": <value json | null>, "expire_time": <unix 毫秒>}
//
// 不设置 Redis TTL，陈旧与否由 expire_time 决定。
//
// # 重建锁
//
// 逻辑过期的 key 由 lock:{key} 保证全局同一时刻最多一个重建任务。
// 任务提交失败（队列满或已关闭）时立即释放锁，下次读取会重新尝试。
//
// # 回源 Context
//
// 回源使用脱离调用方取消链的独立 ctx：
//   - 第一个调用者取消不影响其他 singleflight 等待者
//   - 默认超时 30 秒（可通过 WithLoadTimeout 配置）
//
// # 本地空值影子
//
// WithLocalNullCache 在进程内用 ristretto 记录最近确认不存在的 key，
// 重复穿透请求不再访问 Redis。写入同名 key 前应调用 Delete 清除影子。
package xcache
