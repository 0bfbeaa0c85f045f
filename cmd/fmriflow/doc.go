// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package main 提供 fmriflow 服务端程序与命令行工具入口。

# 概述

cmd/fmriflow 是 fmriflow 的可执行入口。serve 子命令启动 HTTP API，
其余子命令在本地完成画布编译、工作流打包、连接检查、Docker 标签查询、
工具目录浏览与数据库迁移。程序支持 YAML 配置与环境变量、结构化日志（zap）、
Prometheus 指标、OpenTelemetry 追踪以及工具目录热重载。

# 核心类型

  - Server：主服务器，组装目录、编译器、导出器、存储与全部路由
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、compile、export、check、tags、tools、migrate、health、version
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、RequestLogger、
    Metrics、CORS、RateLimiter（基于 IP）、Authenticate（API Key 或 JWT）
  - 目录热重载：FileWatcher 监听目录文件，变更后原子替换并推进代数
  - 可选基础设施：数据库不可用时关闭工作区接口，Redis 不可用时关闭缓存
  - 优雅关闭：信号 → 关闭 HTTP → 停止监听 → 关闭 Redis 与数据库 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
