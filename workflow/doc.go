// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供画布图模型与 CWL 工作流编译器。

# 概述

workflow 包把编辑器中用户拖拽连线得到的节点/边图，确定性地编译为
拓扑有序的 CWL v1.2 Workflow 文档。同一张图（相同节点插入顺序与边集）
总是产生逐字节一致的输出，便于导出结果复现与缓存。

# 核心类型

  - Graph / Node / Edge / Mapping：画布快照，切片顺序即插入顺序
  - CanvasDocument：编辑器 React-Flow JSON 快照
  - Compiler：图 → Document 编译器（并发安全、无状态）
  - Document / Step / Type：有序的 CWL 文档模型

# 编译流程

  1. 过滤占位节点及其关联边
  2. 通过 registry 解析工具描述符，未知工具回退为通用描述符
  3. Kahn 拓扑排序，FIFO 队列按插入顺序打破平局，存在环时返回 ErrGraphHasCycles
  4. 按拓扑顺序命名步骤：单次使用为 id，多次使用为 id_n
  5. 绑定输入：透传输入接上游映射或主输出，其余输入提升为工作流输入
  6. 声明全部步骤输出，并把终端节点的输出暴露为工作流输出
  7. 为带镜像的工具附加 DockerRequirement 提示

# 主要能力

  - 图编辑：AddNode / UpdateParameters / RemoveNode（级联删边）/ Connect / RemoveEdge
  - 画布导入导出：ParseCanvas / LoadCanvasFile / MarshalCanvas
  - 文档编码：EncodeYAML / EncodeExecutable（带 cwl-runner shebang）/ EncodeJSON
  - 图指纹：Graph.Fingerprint，用于编译结果缓存
*/
package workflow
