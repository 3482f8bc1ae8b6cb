// Package xrotate 提供日志文件轮转，xlog 通过 Builder.SetRotation 使用。
//
// 当前实现基于 lumberjack，按文件大小轮转，按数量和天数清理备份。
package xrotate
