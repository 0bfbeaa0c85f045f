// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
包 migration 管理工作区表（fmriflow_workspaces）的数据库 Schema，
支持 PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed.FS 内嵌在 migrations/<dialect>/ 下，
以 iofs 源驱动交给 golang-migrate 执行。版本表默认名为
fmriflow_schema_migrations。

# 核心类型

  - Migrator：Up/Down/Steps/Goto/Force/Version/Status/Info/Close。
  - DefaultMigrator：基于 golang-migrate 的实现，日志输出到 zap。
  - Config：数据库类型、连接 URL、版本表名、锁超时与日志器。
  - CLI：为 `fmriflow migrate` 子命令格式化输出。

# 主要能力

  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL。
  - ParseDatabaseType 解析方言别名，BuildDatabaseURL 拼接连接串。
  - 取消 ctx 时通过 GracefulStop 在当前迁移完成后停止。
*/
package migration
