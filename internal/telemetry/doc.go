// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 Agents Backend 提供集中式的 TracerProvider 和 MeterProvider 配置，
// 以及 HTTP 层与研究 Agent 使用的 instrumentation scope（Tracer）。
// 当遥测功能禁用时不创建导出器、不连接任何外部服务，
// 但仍安装 W3C trace-context 传播器。
package telemetry
