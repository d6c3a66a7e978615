// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 openai 基于 github.com/sashabaranov/go-openai 实现 llm.Provider，
对接 OpenAI Chat Completions API（及任何兼容该协议的网关，通过 BaseURL 覆写）。

# 核心结构体

  - Provider — 持有 go-openai 客户端与默认模型参数
  - Config — API Key、BaseURL、默认模型、超时、温度与最大 Token

# 错误语义

所有上游失败都在此处转换为结构化错误，调用方无需解析错误文本：

  - 超过 Config.Timeout 或父 context 截止 → types.KindTimeout
  - 调用方取消 → 原样返回 context.Canceled
  - 其他 API / 传输错误 → types.KindLLMFailure，extra 中附带
    provider 与 upstream_status
*/
package openai
