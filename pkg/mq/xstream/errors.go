package xstream

import "errors"

var (
	// ErrNilClient 表示传入的 Redis 客户端为 nil。
	ErrNilClient = errors.New("xstream: nil client")

	// ErrNilHandler 表示传入的处理函数为 nil。
	ErrNilHandler = errors.New("xstream: nil handler")

	// ErrInvalidConfig 表示配置参数无效。
	ErrInvalidConfig = errors.New("xstream: invalid configuration")

	// ErrAlreadyRunning 表示 Run 被并发调用。
	// 同一个消费者名称在一个进程内只允许一个读取循环。
	ErrAlreadyRunning = errors.New("xstream: consumer already running")
)
