// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、编译、
兼容性检查、导出、Docker 标签、缓存与数据库连接。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
由 /metrics 端点暴露。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 编译指标：按 ok/cycle/error 计数与耗时，成功编译的步骤数分布。
  - 兼容性指标：按 compatible/warning/incompatible 计数。
  - 导出指标：导出次数、耗时与 ZIP 大小。
  - Docker 标签指标：按镜像与 ok/hit/error 计数，实现 dockertags.Recorder。
  - 缓存与数据库指标：命中/未命中计数、连接池 Gauge。
*/
package metrics
