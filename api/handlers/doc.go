// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 fmriflow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 fmriflow 所有 HTTP 端点的请求处理逻辑，
包括工具目录查询、画布编译、连接兼容性检查、工作流打包导出、
Docker 标签查询、工作区存储、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - ToolHandler：工具目录列表与详情，跟随目录热重载
  - CompileHandler：画布编译为 CWL，支持 Redis 缓存与指标
  - CompatHandler：连接检查、扩展名比较、glob 解析与 WebSocket 实时检查
  - ExportHandler：工作流 ZIP 包导出
  - DockerTagsHandler：Docker Hub 标签查询
  - WorkspaceHandler：工作区 CRUD
  - HealthHandler：服务健康检查（/health, /healthz, /ready）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ReadBody、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 依赖以小接口注入（Catalog、CompileCache、TagFetcher 等），便于测试替换
  - 就绪检查：报告工具目录代次，区分可选依赖的 disabled / unavailable / fail
*/
package handlers
