// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package dockertags 从 Docker Hub 拉取神经影像工具镜像的可选版本标签。

# 概述

编辑器中每个节点可以选择工具镜像的 Docker 版本。dockertags 查询
Docker Hub 的标签接口，过滤掉基于 SHA 的标签，保证 latest 排在首位，
并截断为最多 MaxTags 个，供版本下拉框与导出器使用。

# 核心类型

  - Client：Docker Hub 客户端，内置限流（x/time/rate）与可选缓存
  - Config：基础 URL、标签上限、请求速率、超时与缓存 TTL
  - Result：FetchAll 的按库结果与按库错误
  - Cache：可选的 JSON 缓存接口，由 internal/cache.Manager 实现

# 主要能力

  - Fetch：单个镜像的标签列表
  - FetchAll：按库并发拉取（errgroup），单库失败不影响其它库
  - Filter：纯函数形式的标签过滤与排序规则
  - DefaultImages：各神经影像库的默认镜像
*/
package dockertags
