package xrotate

import (
	"errors"
	"io"
)

// 编译时断言：Rotator 接口是 io.WriteCloser 的超集
var _ io.WriteCloser = (Rotator)(nil)

var (
	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator is closed")

	// ErrEmptyFilename 日志文件名为空
	ErrEmptyFilename = errors.New("xrotate: filename is empty")

	// ErrInvalidConfig 轮转参数超出允许范围
	ErrInvalidConfig = errors.New("xrotate: invalid config")
)

// Rotator 日志轮转器接口，所有实现都必须是并发安全的。
type Rotator interface {
	// Write 写入日志数据，达到轮转条件时自动轮转
	Write(p []byte) (n int, err error)

	// Close 关闭轮转器，重复调用返回 ErrClosed
	Close() error

	// Rotate 手动触发日志轮转
	Rotate() error
}
