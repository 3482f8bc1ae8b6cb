// Package xid 提供基于 Redis 自增计数器的 63 位全局 ID 生成器。
//
// 位布局（最高位恒为 0）：
//
//	| 31 bit 秒级时间戳（相对 2024-01-01） | 32 bit 当日序号 |
//
// 序号计数器按业务 key 与 UTC 日期分开，例如 icr:order:2024:06:18，
// 计数器首次创建时设置过期时间，便于按天检查与自动清理。
//
// 单日序号超过 2^32-1 时 Next 返回 ErrSequenceOverflow，不回绕。
package xid
