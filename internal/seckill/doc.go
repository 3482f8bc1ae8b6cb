// Package seckill 实现秒杀下单的热路径。
//
// 库存校验、一人一单校验、扣减 Redis 库存和投递订单消息在一个 Lua 脚本内原子完成，
// 请求路径上不访问数据库，也不加分布式锁。订单由 internal/order 异步落库。
//
// Redis 中的秒杀 key 只由两处写入：Preload/EnsureStock 初始化库存，以及下单脚本。
//
//	seckill:stock:{voucherId}  剩余库存（字符串整数）
//	seckill:order:{voucherId}  已下单用户 ID 集合
//	stream.orders              订单消息，字段 id、userId、voucherId
package seckill
