// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，用于缓存编译结果与 Docker 标签。

# 概述

本包封装 go-redis 客户端，为编译接口与 Docker 标签客户端提供统一的缓存
读写接口。Manager 负责连接生命周期管理，包括初始化、健康检查与优雅关闭。
所有键统一加上 KeyPrefix，避免与同实例上的其它应用冲突。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete 等基础操作，
    GetJSON/SetJSON 便捷序列化方法，以及 GetCompiled/SetCompiled 编译结果读写。
  - Config：缓存配置，包含地址、密码、键前缀、默认 TTL、编译结果 TTL、
    连接池大小与健康检查间隔等参数。
  - Stats：缓存统计信息，解析自 Redis INFO 与 DBSIZE。

# 主要能力

  - 编译结果缓存：CompileKey 以图指纹、输出格式与默认标签组成键。
  - Docker 标签缓存：Manager 满足 dockertags.Cache 接口。
  - 健康检查：后台定时 Ping 检测，Close 后退出。
  - 错误语义：提供 ErrCacheMiss / ErrClosed 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
