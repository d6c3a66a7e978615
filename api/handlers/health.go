package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/llm"
	"github.com/BaSui01/agentsbackend/types"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// BuildInfo 服务构建信息
type BuildInfo struct {
	Name        string
	Version     string
	Environment string
	BuildTime   string
	GitCommit   string
}

// HealthHandler 信息与健康检查处理器
type HealthHandler struct {
	info      BuildInfo
	responder *ErrorResponder
	logger    *zap.Logger
	checks    []HealthCheck
	mu        sync.RWMutex
	now       func() time.Time
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status      string                 `json:"status"` // "healthy", "unhealthy"
	Environment string                 `json:"environment,omitempty"`
	Version     string                 `json:"version,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(info BuildInfo, responder *ErrorResponder, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		info:      info,
		responder: responder,
		logger:    logger.With(zap.String("component", "health_handler")),
		now:       time.Now,
	}
}

// RegisterCheck 注册就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleRoot 处理 / 请求，其他未注册路径返回 NOT_FOUND 错误信封
// @Summary 服务信息
// @Tags 健康
// @Produce json
// @Success 200 {object} api.InfoResponse "服务信息"
// @Failure 404 {object} api.ErrorResponse "路径不存在"
// @Router / [get]
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}

	WriteJSON(w, http.StatusOK, api.InfoResponse{
		Name:        h.info.Name,
		Version:     h.info.Version,
		Status:      "operational",
		Environment: h.info.Environment,
		Endpoints: map[string]string{
			"health":          "/health",
			"ready":           "/ready",
			"version":         "/version",
			"research":        "/api/v1/chat/research",
			"research_stream": "/api/v1/chat/research/stream",
		},
	})
}

// NotFound 渲染 NOT_FOUND 错误信封
func (h *HealthHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.responder.Respond(w, r, types.NewNotFoundError("The requested resource was not found"))
}

// HandleHealth 处理 /health 请求（存活检查）
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:      "healthy",
		Environment: h.info.Environment,
		Version:     h.info.Version,
		Timestamp:   h.now().UTC(),
	})
}

// HandleReady 处理 /ready 请求（就绪检查）
// @Summary 准备情况检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已准备就绪"
// @Failure 503 {object} HealthStatus "服务尚未准备好"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:      "healthy",
		Environment: h.info.Environment,
		Version:     h.info.Version,
		Timestamp:   h.now().UTC(),
		Checks:      make(map[string]CheckResult),
	}

	allHealthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{
			Status:  "pass",
			Latency: latency.String(),
		}

		if err != nil {
			// 只返回通用信息，具体错误写日志
			result.Status = "fail"
			result.Message = "check failed"
			allHealthy = false

			h.logger.Warn("readiness check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}

		status.Checks[check.Name()] = result
	}

	if !allHealthy {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"name":       h.info.Name,
		"version":    h.info.Version,
		"build_time": h.info.BuildTime,
		"git_commit": h.info.GitCommit,
	})
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// CheckFunc 把函数适配为 HealthCheck
type CheckFunc struct {
	name  string
	check func(ctx context.Context) error
}

// NewCheckFunc 创建函数型健康检查
func NewCheckFunc(name string, check func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, check: check}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) error { return c.check(ctx) }

// NewRedisHealthCheck 创建 Redis 健康检查
func NewRedisHealthCheck(name string, ping func(ctx context.Context) error) *CheckFunc {
	return NewCheckFunc(name, ping)
}

// NewProviderHealthCheck 创建 LLM Provider 健康检查
func NewProviderHealthCheck(provider llm.Provider) *CheckFunc {
	return NewCheckFunc("llm_"+provider.Name(), func(ctx context.Context) error {
		status, err := provider.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if status == nil || !status.Healthy {
			return errors.New("provider reported unhealthy")
		}
		return nil
	})
}
