// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: Redis 分布式锁，简单锁（SETNX + Lua 校验释放）和 redsync 锁工厂
//   - xcron: 分布式定时任务，每次触发前获取任务锁保证单实例执行
//
// 设计原则：
//   - 锁被占用与锁服务异常区分返回
//   - 只释放自己持有的锁
package distributed
