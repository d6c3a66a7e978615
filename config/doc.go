// Package config 提供 Agents Backend 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（AGENTS_ 前缀）的顺序合并，
// 加载后经 Validate 校验并以只读方式在进程内共享。
// 生产环境的风险配置通过 Warnings 返回，由启动流程记录日志。
package config
