// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 Agents Backend 服务端程序入口。

# 概述

cmd/agentsbackend 对外暴露研究型 Agent 的 HTTP API：同步研究接口
POST /api/v1/chat/research 与 SSE 流式接口 POST /api/v1/chat/research/stream，
以及 /、/health、/ready、/version 等运维端点。配置通过 YAML 文件与
AGENTS_* 环境变量加载，日志使用 zap，指标在独立端口以 Prometheus 格式暴露。

# 核心类型

  - Server      — 装配 Agent、处理器、中间件，管理 API 与 Metrics 两个端口
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：RequestID、OTelTracing、Recovery、SecurityHeaders、
    RequestLogger、Metrics、CORS、MaxBodySize；研究路由另外包裹
    Authenticate 与 RateLimiter，公开端点与未知路径不认证、不限流
  - 认证：X-API-Key 或 JWT Bearer（HS256，可选角色校验）
  - 限流：进程内令牌桶，或启用 Redis 时多实例共享的固定窗口
  - 优雅关闭：SIGINT/SIGTERM 取消上下文后并行关闭两个端口，流式请求
    在 ShutdownTimeout 内自然结束
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
