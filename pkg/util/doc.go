// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 基于 Redis INCR 的全局递增 ID，高 32 位为秒级时间戳
//   - xpool: 泛型 Worker Pool，可配置 worker/队列大小、优雅关闭
package util
