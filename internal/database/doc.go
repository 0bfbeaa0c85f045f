// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
包 database 提供工作区存储所用的 GORM 连接池管理，支持
PostgreSQL、MySQL 与纯 Go SQLite（glebarez）三种方言。

# 概述

Open 根据 config.DatabaseConfig 选择方言并建立连接，交给
PoolManager 统一管理连接生命周期。后台健康检查定时探活，
并把打开与空闲连接数上报给 StatsRecorder（metrics.Collector）。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB/Ping/Stats/
    GetStats/Close 以及事务方法。
  - PoolConfig：最大空闲与打开连接数、生命周期、空闲超时与
    健康检查间隔，Validate 校验取值。
  - StatsRecorder：连接池指标上报接口。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 方言选择：Dialector 按驱动名返回 postgres/mysql/sqlite 方言。
  - 健康检查：后台定时 PingContext 探活，Close 时停止。
  - 事务管理：WithTransaction 单次执行；TransactionWithRetry 对死锁、
    序列化失败、SQLite 锁竞争等错误做指数退避重试，工作区更新使用它。
*/
package database
