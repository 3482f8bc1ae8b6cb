package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xseckill/internal/app"
	"github.com/omeyang/xseckill/internal/domain"
	"github.com/omeyang/xseckill/internal/seckill"
	"github.com/omeyang/xseckill/internal/storage/postgres"
	"github.com/omeyang/xseckill/internal/storage/postgres/migrations"
	"github.com/omeyang/xseckill/pkg/config/xconf"
	"github.com/omeyang/xseckill/pkg/context/xctx"
	"github.com/omeyang/xseckill/pkg/lifecycle/xrun"
	"github.com/omeyang/xseckill/pkg/observability/xlog"
	"github.com/omeyang/xseckill/pkg/util/xid"
)

// timeLayout voucher add 的时间参数格式。
const timeLayout = time.RFC3339

// env 命令执行所需的配置和日志。
type env struct {
	conf    *xconf.Config
	cfg     app.Config
	logger  xlog.LoggerWithLevel
	cleanup func() error
}

func loadEnv(cmd *cli.Command) (*env, error) {
	conf, cfg, err := app.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	logger, cleanup, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &env{conf: conf, cfg: cfg, logger: logger, cleanup: cleanup}, nil
}

func (e *env) close() { _ = e.cleanup() }

// withApp 组装完整服务后执行 fn，返回前释放所有连接。
func withApp(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, e *env, a *app.App) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	a, err := app.New(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			e.logger.Warn(closeCtx, "close failed", xlog.Err(err))
		}
	}()
	return fn(ctx, e, a)
}

// withCoordinator 只连接 Redis，秒杀入口不依赖数据库。
func withCoordinator(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, c *seckill.Coordinator) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	rdb := app.NewRedis(e.cfg.Redis)
	defer func() { _ = rdb.Close() }()

	ids, err := xid.NewGenerator(rdb)
	if err != nil {
		return err
	}
	coord, err := seckill.NewCoordinator(rdb, ids,
		seckill.WithStream(e.cfg.Stream.Name),
		seckill.WithLogger(e.logger))
	if err != nil {
		return err
	}
	return fn(ctx, coord)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "运行订单消费者和定时任务",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, e *env, a *app.App) error {
				err := a.Serve(ctx, e.conf)
				if errors.Is(err, xrun.ErrSignal) {
					return nil
				}
				return err
			})
		},
	}
}

func seckillCommand() *cli.Command {
	return &cli.Command{
		Name:  "seckill",
		Usage: "以指定用户抢购一次秒杀券",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "user", Aliases: []string{"u"}, Usage: "用户 ID", Required: true},
			&cli.Int64Flag{Name: "voucher", Aliases: []string{"v"}, Usage: "秒杀券 ID", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			userID, voucherID := cmd.Int64("user"), cmd.Int64("voucher")
			if userID <= 0 || voucherID <= 0 {
				return usagef("--user and --voucher must be positive")
			}
			ctx, err := xctx.EnsureRequestID(ctx)
			if err != nil {
				return err
			}
			if ctx, err = xctx.WithUserID(ctx, userID); err != nil {
				return err
			}
			return withCoordinator(ctx, cmd, func(ctx context.Context, c *seckill.Coordinator) error {
				orderID, err := c.Seckill(ctx, userID, voucherID)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.Root().Writer, "order %d accepted\n", orderID)
				return err
			})
		},
	}
}

func stockCommand() *cli.Command {
	return &cli.Command{
		Name:  "stock",
		Usage: "查看 Redis 中的秒杀库存",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "voucher", Aliases: []string{"v"}, Usage: "秒杀券 ID", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			voucherID := cmd.Int64("voucher")
			if voucherID <= 0 {
				return usagef("--voucher must be positive")
			}
			return withCoordinator(ctx, cmd, func(ctx context.Context, c *seckill.Coordinator) error {
				n, err := c.Stock(ctx, voucherID)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.Root().Writer, "voucher %d stock %d\n", voucherID, n)
				return err
			})
		},
	}
}

func shopCommand() *cli.Command {
	return &cli.Command{
		Name:  "shop",
		Usage: "店铺缓存",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "通过缓存查询店铺",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "店铺 ID", Required: true},
					&cli.BoolFlag{Name: "hot", Usage: "使用逻辑过期缓存（热点店铺）"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Int64("id")
					if id <= 0 {
						return usagef("--id must be positive")
					}
					return withApp(ctx, cmd, func(ctx context.Context, _ *env, a *app.App) error {
						query := a.Shops.QueryByID
						if cmd.Bool("hot") {
							query = a.Shops.QueryHot
						}
						s, err := query(ctx, id)
						if err != nil {
							return err
						}
						enc := json.NewEncoder(cmd.Root().Writer)
						enc.SetIndent("", "  ")
						return enc.Encode(s)
					})
				},
			},
		},
	}
}

func voucherCommand() *cli.Command {
	return &cli.Command{
		Name:  "voucher",
		Usage: "秒杀券管理",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "创建秒杀券并初始化 Redis 库存",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "shop", Usage: "店铺 ID", Required: true},
					&cli.StringFlag{Name: "title", Usage: "标题", Required: true},
					&cli.Int64Flag{Name: "stock", Usage: "库存", Required: true},
					&cli.Int64Flag{Name: "pay", Usage: "支付金额（分）"},
					&cli.Int64Flag{Name: "actual", Usage: "抵扣金额（分）"},
					&cli.StringFlag{Name: "begin", Usage: "开始时间 RFC3339，默认立即开始"},
					&cli.StringFlag{Name: "end", Usage: "结束时间 RFC3339，默认不结束"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					v, sk, err := voucherFromFlags(cmd, time.Now())
					if err != nil {
						return err
					}
					return withApp(ctx, cmd, func(ctx context.Context, _ *env, a *app.App) error {
						if err := a.Vouchers.AddVoucher(ctx, v, sk); err != nil {
							return err
						}
						_, err := fmt.Fprintf(cmd.Root().Writer, "voucher %d created with stock %d\n", v.ID, sk.Stock)
						return err
					})
				},
			},
		},
	}
}

func voucherFromFlags(cmd *cli.Command, now time.Time) (*domain.Voucher, *domain.SeckillVoucher, error) {
	if cmd.Int64("shop") <= 0 {
		return nil, nil, usagef("--shop must be positive")
	}
	if cmd.Int64("stock") < 0 {
		return nil, nil, usagef("--stock must not be negative")
	}
	begin, err := parseTime(cmd.String("begin"), now)
	if err != nil {
		return nil, nil, usagef("--begin: %v", err)
	}
	end, err := parseTime(cmd.String("end"), time.Time{})
	if err != nil {
		return nil, nil, usagef("--end: %v", err)
	}
	v := &domain.Voucher{
		ShopID:      cmd.Int64("shop"),
		Title:       cmd.String("title"),
		PayValue:    cmd.Int64("pay"),
		ActualValue: cmd.Int64("actual"),
		Type:        domain.VoucherSeckill,
	}
	sk := &domain.SeckillVoucher{Stock: cmd.Int64("stock"), BeginTime: begin, EndTime: end}
	return v, sk, nil
}

func parseTime(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(timeLayout, s)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "执行数据库迁移",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			pool, err := postgres.Open(ctx, e.cfg.Postgres, e.logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.Apply(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				_, err = fmt.Fprintln(cmd.Root().Writer, "database is up to date")
				return err
			}
			for _, name := range applied {
				if _, err := fmt.Fprintf(cmd.Root().Writer, "applied %s\n", name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
