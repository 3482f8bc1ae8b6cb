package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/resilience/xretry"
)

// ErrEmptyDSN 未配置连接串。
var ErrEmptyDSN = errors.New("postgres: empty dsn")

// Config 连接池配置。
type Config struct {
	DSN             string        `koanf:"dsn"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`

	// SlowQueryThreshold 为 0 时使用 DefaultSlowQueryThreshold，负数关闭慢查询日志。
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
}

// Open 创建连接池并确认数据库可达。
//
// 启动时数据库可能尚未就绪，Ping 失败按指数退避重试 ConnectAttempts 次（默认 5）。
func Open(ctx context.Context, cfg Config, logger xlog.Logger) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, ErrEmptyDSN
	}
	if logger == nil {
		logger = xlog.Discard()
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	threshold := cfg.SlowQueryThreshold
	if threshold == 0 {
		threshold = DefaultSlowQueryThreshold
	}
	pcfg.ConnConfig.Tracer = NewTracer(threshold, logger.With(xlog.Component("postgres")))

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(attempts)),
		xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(200*time.Millisecond),
			xretry.WithMaxDelay(5*time.Second),
		)),
		xretry.WithOnRetry(func(attempt int, err error) {
			logger.Warn(ctx, "postgres not ready, retrying",
				xlog.Count(int64(attempt)), xlog.Err(err))
		}),
	)
	if err := retryer.Do(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}
