// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 redisconn 管理服务与 Redis 之间的连接生命周期。

# 概述

Redis 在本服务中只用于多实例共享的限流计数与就绪检查。Manager 负责
建立连接（启动时 Ping 校验）、后台定时健康检查、连接池统计与优雅关闭，
上层通过 Client() 获取 go-redis 客户端。

# 核心类型

  - Manager：持有 *redis.Client，提供 Ping/Stats/Close。
  - Stats：连接池统计（命中、未命中、超时、总连接数、空闲连接数）。

# 主要能力

  - 可选 TLS：RedisConfig.TLS 开启时使用 tlsutil 的加固配置。
  - 健康检查：后台定时 Ping，仅在状态变化时输出日志。
  - 优雅关闭：Close 幂等，停止后台检查并释放连接。
*/
package redisconn
