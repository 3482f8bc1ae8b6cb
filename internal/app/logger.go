package app

import (
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/observability/xrotate"
)

// ServiceName 日志中的 service 字段。
const ServiceName = "seckilld"

// NewLogger 按配置构建日志，返回的清理函数关闭轮转文件。
func NewLogger(cfg LogConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format).
		SetAddSource(cfg.AddSource).
		SetService(ServiceName)
	if cfg.File != "" {
		var opts []xrotate.Option
		if cfg.MaxSizeMB > 0 {
			opts = append(opts, xrotate.WithMaxSize(cfg.MaxSizeMB))
		}
		if cfg.MaxBackups > 0 {
			opts = append(opts, xrotate.WithMaxBackups(cfg.MaxBackups))
		}
		if cfg.MaxAgeDays > 0 {
			opts = append(opts, xrotate.WithMaxAge(cfg.MaxAgeDays))
		}
		opts = append(opts, xrotate.WithCompress(cfg.Compress))
		b.SetRotation(cfg.File, opts...)
	}
	return b.Build()
}
