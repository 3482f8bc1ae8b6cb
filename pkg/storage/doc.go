// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xcache: Redis 缓存，空值占位防穿透、逻辑过期防击穿、TTL 抖动防雪崩
package storage
