package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/testutil/mocks"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHealthCheck 模拟健康检查
type mockHealthCheck struct {
	name string
	err  error
}

func (m *mockHealthCheck) Name() string {
	return m.name
}

func (m *mockHealthCheck) Check(ctx context.Context) error {
	return m.err
}

func newHealthHandler() *HealthHandler {
	return NewHealthHandler(BuildInfo{
		Name:        "Agents Backend",
		Version:     "1.2.3",
		Environment: "staging",
		BuildTime:   "2026-01-01T00:00:00Z",
		GitCommit:   "abc123",
	}, NewErrorResponder(zap.NewNop(), nil), zap.NewNop())
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleRoot(t *testing.T) {
	handler := newHealthHandler()

	w := httptest.NewRecorder()
	handler.HandleRoot(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var info api.InfoResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "Agents Backend", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "operational", info.Status)
	assert.Equal(t, "staging", info.Environment)
	assert.Equal(t, "/api/v1/chat/research/stream", info.Endpoints["research_stream"])
}

func TestHealthHandler_UnknownPathIsNotFound(t *testing.T) {
	handler := newHealthHandler()

	w := httptest.NewRecorder()
	handler.HandleRoot(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "NOT_FOUND", resp.Error)
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := newHealthHandler()

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "staging", status.Environment)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name           string
		setupChecks    func(*HealthHandler)
		expectedStatus int
		checkStatus    func(*testing.T, *HealthStatus)
	}{
		{
			name:           "no checks - ready",
			setupChecks:    func(h *HealthHandler) {},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
			},
		},
		{
			name: "all checks pass",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(&mockHealthCheck{name: "test1"})
				h.RegisterCheck(NewProviderHealthCheck(mocks.NewMockProvider()))
			},
			expectedStatus: http.StatusOK,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "healthy", status.Status)
				assert.Len(t, status.Checks, 2)
				assert.Equal(t, "pass", status.Checks["test1"].Status)
				assert.Equal(t, "pass", status.Checks["llm_mock"].Status)
			},
		},
		{
			name: "provider check fails without leaking the error",
			setupChecks: func(h *HealthHandler) {
				h.RegisterCheck(NewProviderHealthCheck(mocks.NewMockProvider().WithHealthError(errors.New("401 invalid api key sk-abc"))))
				h.RegisterCheck(NewRedisHealthCheck("redis", func(ctx context.Context) error { return nil }))
			},
			expectedStatus: http.StatusServiceUnavailable,
			checkStatus: func(t *testing.T, status *HealthStatus) {
				assert.Equal(t, "unhealthy", status.Status)
				assert.Equal(t, "fail", status.Checks["llm_mock"].Status)
				assert.Equal(t, "check failed", status.Checks["llm_mock"].Message)
				assert.Equal(t, "pass", status.Checks["redis"].Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newHealthHandler()
			tt.setupChecks(handler)

			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "sk-abc")

			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			tt.checkStatus(t, &status)
		})
	}
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := newHealthHandler()

	w := httptest.NewRecorder()
	handler.HandleVersion(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var info map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["git_commit"])
}
