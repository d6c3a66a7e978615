package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// 研究对话类型
// =============================================================================

// ChatRequest 研究查询请求。
// @Description 研究查询请求结构
type ChatRequest struct {
	// 用户查询内容
	Query string `json:"query" example:"What are the latest advances in solid-state batteries?" binding:"required"`
}

// ChatResponse 研究查询响应。
// @Description 研究查询响应结构
type ChatResponse struct {
	// 研究总结
	ResearchSummary string `json:"research_summary"`
	// 支撑总结的研究资料
	ResearchDocuments string `json:"research_documents"`
}

// =============================================================================
// 错误响应类型
// =============================================================================

// ErrorResponse 统一错误响应结构，所有失败响应都使用它。
// @Description 标准错误响应
type ErrorResponse struct {
	// 机器可读的错误码（如 VALIDATION_ERROR、AGENT_ERROR）
	Error string `json:"error" example:"VALIDATION_ERROR"`
	// 人类可读的错误描述
	Detail string `json:"detail" example:"Query must be between 1 and 10000 characters"`
	// 错误发生时间（UTC）
	Timestamp time.Time `json:"timestamp"`
	// 请求 ID，用于排查
	RequestID string `json:"request_id,omitempty" example:"req-3f1c9e2a"`
	// 附加上下文
	Extra map[string]any `json:"extra"`
}

// ValidationErrorDetail 单个字段的校验错误。
type ValidationErrorDetail struct {
	Field   string `json:"field" example:"body.query"`
	Message string `json:"message" example:"String should have at most 10000 characters"`
	Type    string `json:"type" example:"string_too_long"`
}

// ValidationErrorResponse 请求结构校验失败（422）的错误响应。
// @Description 含逐字段明细的校验错误响应
type ValidationErrorResponse struct {
	ErrorResponse
	ValidationErrors []ValidationErrorDetail `json:"validation_errors"`
}

// =============================================================================
// 流式事件类型
// =============================================================================

// StreamEventType 流式事件类型
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventError StreamEventType = "error"
	StreamEventDone  StreamEventType = "done"
)

// StreamEvent is one SSE payload. Only the fields of its variant are encoded:
// token carries content, error carries error and message, done carries nothing.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   string
	Message string
}

// TokenEvent 构造 token 事件
func TokenEvent(content string) StreamEvent {
	return StreamEvent{Type: StreamEventToken, Content: content}
}

// ErrorEvent 构造 error 终止事件
func ErrorEvent(code, message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Error: code, Message: message}
}

// DoneEvent 构造 done 终止事件
func DoneEvent() StreamEvent {
	return StreamEvent{Type: StreamEventDone}
}

// IsTerminal reports whether the event ends a stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamEventError || e.Type == StreamEventDone
}

type tokenPayload struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content"`
}

type errorPayload struct {
	Type    StreamEventType `json:"type"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type donePayload struct {
	Type StreamEventType `json:"type"`
}

// MarshalJSON encodes the event as its variant's object.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case StreamEventToken:
		return json.Marshal(tokenPayload{Type: e.Type, Content: e.Content})
	case StreamEventError:
		return json.Marshal(errorPayload{Type: e.Type, Error: e.Error, Message: e.Message})
	case StreamEventDone:
		return json.Marshal(donePayload{Type: e.Type})
	default:
		return nil, fmt.Errorf("unknown stream event type %q", e.Type)
	}
}

// UnmarshalJSON decodes any variant.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    StreamEventType `json:"type"`
		Content string          `json:"content"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = StreamEvent{Type: raw.Type, Content: raw.Content, Error: raw.Error, Message: raw.Message}
	return nil
}

// =============================================================================
// 服务信息类型
// =============================================================================

// InfoResponse 根路径返回的服务信息
type InfoResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Endpoints   map[string]string `json:"endpoints"`
}
