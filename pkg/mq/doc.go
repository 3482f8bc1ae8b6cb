// Package mq 提供消息队列相关的子包。
//
// 子包列表：
//   - xstream: Redis Stream 消费者组，至少一次投递，失败消息从 pending 列表重放
package mq
