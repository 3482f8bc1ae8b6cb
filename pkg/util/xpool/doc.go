// Package xpool 提供通用的泛型 worker pool。
//
// Pool 由调用方显式创建、显式关闭，不存在进程级单例：
//   - New 创建后自动启动 worker
//   - Submit 非阻塞，队列满返回 ErrQueueFull，关闭后返回 ErrPoolStopped
//   - Shutdown(ctx) 处理完已入队任务后返回，ctx 到期时提前返回，可通过 Done() 等待
//   - 单个任务 panic 被捕获并记录（仅记录 task 类型），不影响其他任务
//
// 缓存逻辑过期重建就是在调用方持有的 Pool 上异步执行的。
package xpool
