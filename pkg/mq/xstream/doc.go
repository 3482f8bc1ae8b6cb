// Package xstream 提供基于 Redis Stream 消费者组的至少一次消费循环。
//
// 默认参数对应订单流：stream "stream.orders"、消费者组 "g1"、消费者 "c1"，
// 每次读取 1 条，最长阻塞 2 秒。
//
// # 状态机
//
//	        读取/处理失败
//	MAIN_READ ──────────────▶ RECOVERY
//	    ▲                        │ 逐条重放 pending（XREADGROUP ... 0）
//	    └────── pending 为空 ────┘ 失败时等待 200ms 后重试同一条
//
// 启动时先进入 RECOVERY，重放上次退出前未确认的消息。
// 任何错误都不会让循环退出，只有 ctx 取消时 Run 才返回。
//
// # 幂等
//
// 处理成功但 XACK 失败时消息会被重放，Handler 必须是幂等的。
package xstream
