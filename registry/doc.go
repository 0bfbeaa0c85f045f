// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package registry 提供神经影像工具的能力注册表。

# 概述

registry 以画布标签（label）为键，保存每个工具的能力描述：CWL 工具文件路径、
Docker 镜像、主输出、必选/可选输入以及输出声明。注册表在构造后不可变，
可被编译器、兼容性引擎与导出器并发读取。

# 核心类型

  - ToolDescriptor：单个工具的能力记录，输入输出保持声明顺序
  - InputSpec：必选输入（类型、是否透传、接受的扩展名）
  - OptionalInputSpec：可选参数（含 record 互斥组 Variants）
  - OutputSpec：输出声明（类型、glob 模式、依赖开关）
  - Registry：标签 → 描述符的只读表
  - Lookup：编译器依赖的最小查询接口

# 主要能力

  - YAML 目录解析：Parse / Load，保持映射键顺序
  - 内置目录：Builtin / MustBuiltin（go:embed 嵌入二进制）
  - 未知工具回退：Generic 合成单输入单输出的通用描述符
  - 一致性检查：Registry.Validate（仅作提示，编译器不强制）
*/
package registry
