// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package types 提供 fmriflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 registry、workflow、bundle、
api 等上层模块提供统一的错误契约。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
