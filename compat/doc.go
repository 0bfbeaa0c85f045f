// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package compat 提供工具端口之间的类型与文件扩展名兼容性判定。

# 概述

compat 是纯计算包：给定上游输出与下游输入的声明，判断连线是合法、
合法但需警告，还是不合法。所有函数都是全函数，从不 panic、从不返回 error，
编辑器可以在每次候选连线时实时调用。

# 核心类型

  - TypeInfo：类型串解析结果（Base / IsArray / IsNullable）
  - Result：判定结果（Compatible / Warning / Reason 及扩展名标记）
  - Category：粗粒度文件格式族（nifti、afni、freesurfer、surface 等）
  - Ports：工具可连接端口（输出含解析后的扩展名，输入为透传端口）

# 主要能力

  - 类型判定：ClassifyType / CheckTypeCompatibility
  - 扩展名判定：CheckExtensionCompatibility，三级结果（精确匹配 / 跨格式警告 / 不兼容）
  - glob 解析：ParseExtensionsFromGlob，支持模板引用剥离与 AFNI +orig/+tlrc 后缀
  - 连线辅助：PortsOf / CheckMapping / DefaultMapping / ConnectionMismatch
*/
package compat
