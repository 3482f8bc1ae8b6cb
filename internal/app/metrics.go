package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xseckill/internal/storage/postgres"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
)

// ReportMetrics 采集进程内指标并按 component/operation/status/outcome 记录计数。
//
// 计数器是累计值，两次报告之间的差值即该周期的请求量。
// 连接池由 postgres.Open 创建时同时记录查询统计。
func (a *App) ReportMetrics(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := a.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("app: collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := make([]slog.Attr, 0, dp.Attributes.Len()+2)
				attrs = append(attrs, slog.String("metric", m.Name), xlog.Count(dp.Value))
				for _, kv := range dp.Attributes.ToSlice() {
					attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
				}
				a.Logger.Info(ctx, "metric", attrs...)
			}
		}
	}
	if tr, ok := postgres.TracerOf(a.DB); ok {
		st := tr.Stats()
		a.Logger.Info(ctx, "postgres query stats",
			slog.Int64("queries", st.Queries),
			slog.Int64("errors", st.Errors),
			slog.Int64("slow_queries", st.SlowQueries))
	}
	return nil
}
