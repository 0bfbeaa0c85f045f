// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package config 提供 fmriflow 的配置加载与文件监听。

# 概述

配置按「默认值 → YAML 文件 → 环境变量」的优先级合并，环境变量统一使用
FMRIFLOW 前缀，嵌套字段以下划线连接（如 FMRIFLOW_SERVER_HTTP_PORT）。

# 核心类型

  - Config：服务、日志、数据库、Redis、遥测、工具目录、编译、Docker Hub 与认证配置
  - Loader：Builder 风格的配置加载器，支持追加自定义校验
  - FileWatcher：轮询式文件监听器，用于工具目录热重载

# 主要能力

  - Validate 汇总所有字段错误后一次性返回
  - DatabaseConfig.DSN 生成 postgres、mysql、sqlite 连接串
  - FileWatcher 对连续变更做去抖，回调在独立 goroutine 中执行
*/
package config
