// seckilld 是秒杀服务的守护进程和运维命令行。
//
// 用法:
//
//	seckilld [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径（YAML/JSON），可用 SECKILL_CONFIG 指定
//
// 命令:
//
//	serve              运行订单消费者和定时任务
//	seckill            以指定用户抢购一次秒杀券
//	stock              查看 Redis 中的秒杀库存
//	shop get           通过缓存查询店铺
//	voucher add        创建秒杀券并初始化库存
//	migrate            执行数据库迁移
//
// 退出码:
//
//	0: 成功
//	1: 执行失败（含秒杀被拒绝）
//	2: 参数错误
//
// 所有配置项都可以用 SECKILL_ 前缀的环境变量覆盖，层级用双下划线分隔，
// 例如 SECKILL_REDIS__ADDRS=redis:6379。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息，构建时通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "seckilld",
		Usage:   "秒杀服务守护进程与运维工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
				Sources: cli.EnvVars("SECKILL_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			seckillCommand(),
			stockCommand(),
			shopCommand(),
			voucherCommand(),
			migrateCommand(),
		},
		// 退出码由 run 统一映射
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := createApp(stdout).Run(ctx, args); err != nil {
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "参数错误: %v\n", err)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
