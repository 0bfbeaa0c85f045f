// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
Package bundle 把画布图打包为可直接运行的 CWL 工作流 ZIP。

# 概述

bundle 在编译器之上完成导出：编译 workflows/main.cwl（带 cwl-runner
shebang），从工具根目录读取每个被引用工具的 CWL 文件，并按节点选择的
Docker 版本改写工具文件中的 DockerRequirement 提示，最后连同可选的
README.md 一起写入 ZIP。

# 核心类型

  - Exporter：导出器，持有注册表、编译器与工具文件系统（fs.FS）
  - Manifest：一次导出写入的条目清单

# 主要能力

  - Export：图 → ZIP，空图返回 ErrEmptyWorkflow，缺失工具文件即失败
  - Docker 版本选择：同一工具文件取第一个非 latest 版本
  - 提示注入：基于 yaml.Node 往返改写，保留注释与 shebang，解析失败原样复制
  - 工具文件并发加载（errgroup）
*/
package bundle
