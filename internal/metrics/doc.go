// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的服务指标采集能力，覆盖
HTTP、错误信封、研究 Agent 调用、SSE 流与限流五个维度。

# 核心类型

  - Collector：指标收集器，通过 promauto.With 注册到调用方提供的
    Registry，测试可使用独立 Registry 隔离。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小与在途请求数，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 错误指标：按错误码与状态码统计写出的错误信封。
  - Agent 指标：按 sync/stream 模式与结果统计调用次数和耗时。
  - 流式指标：按终止事件（done/error/disconnected）统计流数量与 token 帧数。
  - 限流指标：按路径统计被拒绝的请求。
*/
package metrics
