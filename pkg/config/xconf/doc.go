// Package xconf 提供基于 koanf 的配置加载、环境变量覆盖和热重载。
//
// # 加载顺序
//
// 配置按以下优先级组装（后者覆盖前者）：
//
//  1. 配置文件（YAML 或 JSON）
//  2. WithDefaults 默认值，只填补文件中缺失的键
//  3. WithEnvPrefix 环境变量，例如 SECKILL_REDIS__ADDR 覆盖 redis.addr
//
// # 并发安全
//
// Reload 解析成功后整体替换 koanf 实例，解析失败保留旧配置。
// Client() 返回的指针在 Reload 后仍然可用但数据是旧的，
// 需要最新值时每次重新调用 Client()。
//
// # 配置监视
//
// Watch 基于 fsnotify 监视配置文件所在目录，内置防抖。
// Watcher.Run 阻塞到 ctx 结束，适合交给 xrun 管理。
package xconf
