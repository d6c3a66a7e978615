// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Agents Backend HTTP API 的请求处理器实现。

# 概述

handlers 包实现研究代理对外的全部端点，以及唯一的错误渲染出口。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - ErrorResponder   — 把任何 error 分类、记录一次日志并写出统一错误信封
  - Classification   — Classify 的纯函数结果：status、code、detail、extra、校验明细
  - ResearchHandler  — /api/v1/chat/research 同步与 SSE 流式端点
  - SSEWriter        — "data: <json>\n\n" 帧写入并逐帧刷新
  - HealthHandler    — /、/health、/ready、/version 与未知路径的 NOT_FOUND
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码，支持 Flush

# 错误分类顺序

  1. *types.Error：按其字段原样输出
  2. *types.RequestValidationError：422 VALIDATION_ERROR 与逐字段明细
  3. *types.HTTPError：透传状态码，错误码为 HTTP_<status>
  4. 其他：消息命中 LLM 关键词时为 502 LLM_ERROR，否则 500
     INTERNAL_SERVER_ERROR；原始消息只写日志

# 流式语义

FrameStream 保证每个流恰好一个终止帧（done 或 error），token 帧在其之前
按序发送。响应头发出后状态码恒为 200，失败只通过终止帧表达。
客户端断开后不再尝试写任何帧，上游流总会被关闭。
*/
package handlers
