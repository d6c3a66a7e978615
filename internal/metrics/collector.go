// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	// 错误响应指标
	errorResponsesTotal *prometheus.CounterVec

	// Agent 指标
	agentInvocationsTotal   *prometheus.CounterVec
	agentInvocationDuration *prometheus.HistogramVec

	// 流式指标
	streamsTotal      *prometheus.CounterVec
	streamTokensTotal prometheus.Counter

	// 限流指标
	rateLimitedTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg；reg 为 nil 时使用默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests being served",
		},
	)

	c.errorResponsesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "error_responses_total",
			Help:      "Total number of error envelopes written, by error code",
		},
		[]string{"code", "status"},
	)

	// Agent 指标
	c.agentInvocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Total number of research agent invocations",
		},
		[]string{"mode", "outcome"}, // mode: sync, stream
	)

	c.agentInvocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Research agent invocation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// 流式指标
	c.streamsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_streams_total",
			Help:      "Total number of SSE streams, by terminal event",
		},
		[]string{"terminal"}, // done, error, disconnected
	)

	c.streamTokensTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_tokens_total",
			Help:      "Total number of token frames written",
		},
	)

	c.rateLimitedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// TrackInFlight 增加在途请求数，返回的函数在请求结束时调用
func (c *Collector) TrackInFlight() func() {
	c.httpInFlight.Inc()
	return c.httpInFlight.Dec
}

// RecordErrorResponse 记录一次错误信封输出
func (c *Collector) RecordErrorResponse(code string, status int) {
	c.errorResponsesTotal.WithLabelValues(code, strconv.Itoa(status)).Inc()
}

// RecordRateLimited 记录一次限流拒绝
func (c *Collector) RecordRateLimited(path string) {
	c.rateLimitedTotal.WithLabelValues(path).Inc()
}

// =============================================================================
// 🎭 Agent 指标记录
// =============================================================================

// RecordAgentInvocation 记录研究 Agent 调用，outcome 为 success、disconnected 或错误码
func (c *Collector) RecordAgentInvocation(mode, outcome string, duration time.Duration) {
	c.agentInvocationsTotal.WithLabelValues(mode, outcome).Inc()
	c.agentInvocationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordStream 记录一次 SSE 流的结束方式与 token 帧数
func (c *Collector) RecordStream(terminal string, tokens int) {
	if terminal == "" {
		terminal = "disconnected"
	}
	c.streamsTotal.WithLabelValues(terminal).Inc()
	c.streamTokensTotal.Add(float64(tokens))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusClass 将 HTTP 状态码转换为分类字符串
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
