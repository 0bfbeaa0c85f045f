// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package workspace 持久化命名的画布快照（工作区）。

# 概述

编辑器中的画布可以保存为工作区，之后重新打开、编译或导出。workspace
使用 GORM 存储工作区记录，画布以编辑器的 React-Flow JSON 形式保存，
并同时记录图指纹与节点数，便于列表展示和编译缓存复用。

# 核心类型

  - Workspace：工作区记录（UUID 主键、名称、描述、画布 JSON、指纹）
  - Store：基于 *gorm.DB 的 CRUD 存储
  - Update：部分更新参数，nil 字段保持不变

# 主要能力

  - Create / Get / List / Update / Delete
  - 自动迁移：Store.Migrate
  - 画布解码：Workspace.Graph 返回 workflow.Graph
*/
package workspace
