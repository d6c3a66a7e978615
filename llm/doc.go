// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义研究代理所依赖的最小大语言模型接入层。

# 概述

上层代理只依赖 [Provider] 接口，具体服务商实现位于 llm/providers 下。
Provider 负责把上游失败转换为 types.Error（KindLLMFailure 或
KindTimeout），因此错误分类不依赖错误文本。

# 核心接口

  - [Provider]：Name / Completion / Stream / HealthCheck
  - [TokenStream]：拉取式 Token 流，Recv 返回 io.EOF 表示生成结束

# 核心类型

  - [ChatRequest] / [ChatResponse]：一次对话补全的请求与响应
  - [Message] / [Role]：对话消息与角色
  - [HealthStatus]：健康检查结果，供 /ready 使用
*/
package llm
