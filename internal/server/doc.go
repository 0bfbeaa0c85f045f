// Copyright (c) fmriflow Authors.
// Licensed under the MIT License.

/*
包 server 提供 fmriflow API 的 HTTP/HTTPS 服务器生命周期管理，
支持非阻塞启动、基于 context 的运行与优雅关闭。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。配置了证书与私钥时使用 tlsutil 的加固
TLS 配置以 HTTPS 监听。信号处理由调用方通过
signal.NotifyContext 转换为 ctx 取消。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Run/Shutdown 等生命周期方法。
  - Config：监听地址、读写与空闲超时、最大请求头大小、
    优雅关闭超时以及 TLS 证书路径。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 取消或服务异常时执行优雅关闭。
  - 错误传播：Errors() 返回异步错误通道。
  - 状态查询：Addr 返回实际监听地址（支持 :0 随机端口），
    IsRunning 返回运行状态。
*/
package server
