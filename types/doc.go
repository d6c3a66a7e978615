// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 Agents Backend 的全局共享错误类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包。所有应用层失败都在失败点
构造为 *Error（Kind + HTTPStatus + Code + Detail + Extra + Cause），
随调用栈原样传播，最终只由 api/handlers 中的 ErrorResponder 渲染一次。

# 核心类型

  - Kind / ErrorCode        — 封闭的失败种类集合及其固定的状态码/错误码映射
  - Error                   — 结构化应用错误，With* 方法返回副本，不修改原值
  - RequestValidationError  — 请求结构校验失败（422），含逐字段 FieldViolation
  - HTTPError               — 传输层错误（405、413 等），状态码原样透传

# 主要能力

  - 构造函数：NewValidationError / NewLLMError / NewTimeoutError 等
  - 错误工具链：AsError / IsKind
  - 上游识别：IsLLMFailure 先按 Kind 判断，再回退到关键字匹配
*/
package types
