// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 fmriflow 测试共享的样例数据与辅助函数。

# 概述

testutil 为 handler、命令行与打包测试提供统一的画布样例、
工具站点文件系统以及 ZIP 读取工具，避免各包重复维护相同的测试数据。

# 核心能力

  - 画布样例：BetFastCanvas（bet → fast 两步流水线）、CyclicCanvas（环）、
    PlaceholderCanvas（只有占位节点）
  - 站点样例：ToolSite 返回内存文件系统，WriteToolSite 写入磁盘目录，
    两者都包含 cwl/fsl/bet.cwl、cwl/fsl/fast.cwl 与 README.md
  - ZIP 辅助：ReadZip 按归档顺序返回条目名与内容
  - 上下文辅助：TestContext 返回带超时并自动取消的上下文

# 使用示例

	w := postJSON(h.HandleExport, "/api/v1/export", testutil.BetFastCanvas)
	files, order := testutil.ReadZip(t, w.Body.Bytes())
*/
package testutil
