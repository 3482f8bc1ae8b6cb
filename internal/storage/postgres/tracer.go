package postgres

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// DefaultSlowQueryThreshold 慢查询阈值默认值。
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// maxLoggedSQL 慢查询日志中 SQL 的最大长度。
const maxLoggedSQL = 512

// QueryStats 查询统计快照。
type QueryStats struct {
	Queries     int64
	Errors      int64
	SlowQueries int64
}

// Tracer 实现 pgx.QueryTracer：统计查询次数和错误，耗时不低于阈值的查询记录 Warn 日志。
//
// 日志在查询路径上同步写出，只包含截断后的 SQL，不包含参数。
type Tracer struct {
	threshold time.Duration
	logger    xlog.Logger
	now       func() time.Time

	queries atomic.Int64
	errors  atomic.Int64
	slow    atomic.Int64
}

type traceStartKey struct{}

type traceStart struct {
	sql string
	at  time.Time
}

// NewTracer 创建查询追踪器，threshold <= 0 时只统计不检测慢查询。
func NewTracer(threshold time.Duration, logger xlog.Logger) *Tracer {
	if logger == nil {
		logger = xlog.Discard()
	}
	return &Tracer{threshold: threshold, logger: logger, now: time.Now}
}

// TraceQueryStart 实现 pgx.QueryTracer。
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{sql: data.SQL, at: t.now()})
}

// TraceQueryEnd 实现 pgx.QueryTracer。
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	t.queries.Add(1)
	if data.Err != nil {
		t.errors.Add(1)
	}
	st, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok || t.threshold <= 0 {
		return
	}
	d := t.now().Sub(st.at)
	if d < t.threshold {
		return
	}
	t.slow.Add(1)

	sql := st.sql
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}
	attrs := []slog.Attr{slog.String("sql", sql), xlog.Duration(d)}
	if data.Err != nil {
		attrs = append(attrs, xlog.Err(data.Err))
	}
	t.logger.Warn(ctx, "slow query", attrs...)
}

// Stats 返回查询统计快照。
func (t *Tracer) Stats() QueryStats {
	return QueryStats{
		Queries:     t.queries.Load(),
		Errors:      t.errors.Load(),
		SlowQueries: t.slow.Load(),
	}
}

// TracerOf 返回 Open 为连接池安装的 Tracer。
func TracerOf(pool *pgxpool.Pool) (*Tracer, bool) {
	if pool == nil {
		return nil, false
	}
	t, ok := pool.Config().ConnConfig.Tracer.(*Tracer)
	return t, ok
}

var _ pgx.QueryTracer = (*Tracer)(nil)
