package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/agent"
	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/types"
)

// =============================================================================
// 💬 研究对话 Handler
// =============================================================================

const (
	queryPreviewRunes = 100
	timeoutDetail     = "Request timed out while processing your query"
)

// ChatMetrics records research endpoint activity. Implemented by
// internal/metrics.Collector.
type ChatMetrics interface {
	RecordAgentInvocation(mode, outcome string, duration time.Duration)
	// RecordStream receives an empty terminal when the client went away first.
	RecordStream(terminal string, tokens int)
}

// ResearchHandler 研究对话处理器
type ResearchHandler struct {
	agent     agent.Agent
	responder *ErrorResponder
	limits    QueryLimits
	timeout   time.Duration
	metrics   ChatMetrics
	logger    *zap.Logger
}

// ResearchOption 配置 ResearchHandler
type ResearchOption func(*ResearchHandler)

// WithQueryLimits 设置查询长度与请求体限制
func WithQueryLimits(limits QueryLimits) ResearchOption {
	return func(h *ResearchHandler) { h.limits = limits }
}

// WithRequestTimeout 设置同步调用的超时时间
func WithRequestTimeout(d time.Duration) ResearchOption {
	return func(h *ResearchHandler) { h.timeout = d }
}

// WithChatMetrics 设置指标记录器
func WithChatMetrics(m ChatMetrics) ResearchOption {
	return func(h *ResearchHandler) { h.metrics = m }
}

// NewResearchHandler 创建研究对话处理器
func NewResearchHandler(a agent.Agent, responder *ErrorResponder, logger *zap.Logger, opts ...ResearchOption) *ResearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ResearchHandler{
		agent:     a,
		responder: responder,
		limits:    DefaultQueryLimits,
		logger:    logger.With(zap.String("component", "research_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleResearch 处理同步研究请求
// @Summary 研究对话
// @Description 提交研究查询，返回研究总结与支撑资料
// @Tags 研究
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "研究请求"
// @Success 200 {object} api.ChatResponse "研究结果"
// @Failure 400 {object} api.ErrorResponse "无效请求"
// @Failure 422 {object} api.ValidationErrorResponse "校验错误"
// @Failure 500 {object} api.ErrorResponse "内部错误"
// @Failure 502 {object} api.ErrorResponse "LLM 服务错误"
// @Failure 504 {object} api.ErrorResponse "超时"
// @Router /api/v1/chat/research [post]
func (h *ResearchHandler) HandleResearch(w http.ResponseWriter, r *http.Request) {
	if !h.requirePost(w, r) {
		return
	}

	req, err := DecodeChatRequest(r, h.limits)
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}

	queryLen := utf8.RuneCountInString(req.Query)
	preview := queryPreview(req.Query)
	h.logger.Info("chat request received",
		zap.String("query_preview", preview),
		zap.Int("query_length", queryLen),
	)

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := h.agent.Invoke(ctx, agent.Input{Query: req.Query})
	duration := time.Since(start)

	if err != nil {
		if clientGone(r, err) {
			h.record("sync", "disconnected", duration)
			h.logger.Debug("client disconnected before research completed",
				zap.String("query_preview", preview),
				zap.Duration("duration", duration),
			)
			return
		}
		mapped := mapAgentError(err, queryLen)
		h.record("sync", outcomeOf(mapped), duration)
		h.responder.Respond(w, r, mapped,
			zap.String("query_preview", preview),
			zap.Duration("duration", duration),
		)
		return
	}

	h.record("sync", "success", duration)
	h.logger.Info("agent invocation completed",
		zap.Int("summary_length", len(res.ResearchSummary)),
		zap.Duration("duration", duration),
	)

	WriteJSON(w, http.StatusOK, api.ChatResponse{
		ResearchSummary:   res.ResearchSummary,
		ResearchDocuments: res.ResearchDocuments,
	})
}

// HandleResearchStream 处理流式研究请求
// @Summary 流式研究对话
// @Description 提交研究查询，以 SSE 实时返回总结 Token
// @Tags 研究
// @Accept json
// @Produce text/event-stream
// @Param request body api.ChatRequest true "研究请求"
// @Success 200 {string} string "SSE 流，帧格式 data: {json}"
// @Failure 422 {object} api.ValidationErrorResponse "校验错误"
// @Router /api/v1/chat/research/stream [post]
func (h *ResearchHandler) HandleResearchStream(w http.ResponseWriter, r *http.Request) {
	if !h.requirePost(w, r) {
		return
	}

	req, err := DecodeChatRequest(r, h.limits)
	if err != nil {
		h.responder.Respond(w, r, err)
		return
	}

	h.logger.Info("streaming chat request received",
		zap.String("query_preview", queryPreview(req.Query)),
		zap.Int("query_length", utf8.RuneCountInString(req.Query)),
	)

	sse := NewSSEWriter(w)
	sse.WriteHeaders()

	ctx := r.Context()
	start := time.Now()

	stream, err := h.agent.Stream(ctx, agent.Input{Query: req.Query})
	if err != nil {
		stream = agent.FailedStream(err)
	}

	stats := FrameStream(ctx, stream, sse, h.logger)
	duration := time.Since(start)

	outcome := "success"
	switch {
	case stats.Disconnected:
		outcome = "disconnected"
	case stats.Terminal == api.StreamEventError:
		outcome = stats.Code
	}
	h.record("stream", outcome, duration)
	if h.metrics != nil {
		h.metrics.RecordStream(string(stats.Terminal), stats.Tokens)
	}

	h.logger.Info("streaming completed",
		zap.Int("tokens_sent", stats.Tokens),
		zap.String("terminal", string(stats.Terminal)),
		zap.Bool("disconnected", stats.Disconnected),
		zap.Duration("duration", duration),
	)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (h *ResearchHandler) requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	h.responder.Respond(w, r, types.NewHTTPError(http.StatusMethodNotAllowed, ""))
	return false
}

func (h *ResearchHandler) record(mode, outcome string, d time.Duration) {
	if h.metrics != nil {
		h.metrics.RecordAgentInvocation(mode, outcome, d)
	}
}

// mapAgentError turns an agent failure into a classified error. Classified
// errors pass through, validation errors gain extra.query_length.
func mapAgentError(err error, queryLen int) error {
	if typed, ok := types.AsError(err); ok {
		if typed.Kind == types.KindValidation {
			return typed.WithExtra("query_length", queryLen)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeoutError(timeoutDetail).WithCause(err)
	}
	if types.MentionsLLMProvider(err.Error()) {
		return types.NewLLMError("").WithCause(err)
	}
	return types.NewAgentError("").WithCause(err)
}

// clientGone reports whether err stems from the caller cancelling the request.
func clientGone(r *http.Request, err error) bool {
	return errors.Is(err, context.Canceled) && errors.Is(r.Context().Err(), context.Canceled)
}

func outcomeOf(err error) string {
	if typed, ok := types.AsError(err); ok {
		return string(typed.Code)
	}
	return string(types.ErrInternalServerError)
}

// queryPreview returns the first 100 runes of q, with "..." when truncated.
func queryPreview(q string) string {
	if utf8.RuneCountInString(q) <= queryPreviewRunes {
		return q
	}
	return string([]rune(q)[:queryPreviewRunes]) + "..."
}
