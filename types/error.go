package types

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// Kind identifies one member of the closed application failure set.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindRateLimit      Kind = "rate_limit"
	KindLLMFailure     Kind = "llm_failure"
	KindAgentFailure   Kind = "agent_failure"
	KindTimeout        Kind = "timeout"
)

// ErrorCode is the machine-readable code carried in every error envelope.
type ErrorCode string

const (
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrAuthentication      ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrLLM                 ErrorCode = "LLM_ERROR"
	ErrAgent               ErrorCode = "AGENT_ERROR"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrInternalServerError ErrorCode = "INTERNAL_SERVER_ERROR"
)

type kindSpec struct {
	status int
	code   ErrorCode
	detail string
}

// kindTable is the fixed status/code mapping of the failure kinds.
var kindTable = map[Kind]kindSpec{
	KindValidation:     {http.StatusBadRequest, ErrValidation, "Invalid request"},
	KindAuthentication: {http.StatusUnauthorized, ErrAuthentication, "Authentication required"},
	KindAuthorization:  {http.StatusForbidden, ErrForbidden, "Insufficient permissions"},
	KindNotFound:       {http.StatusNotFound, ErrNotFound, "Resource not found"},
	KindRateLimit:      {http.StatusTooManyRequests, ErrRateLimitExceeded, "Rate limit exceeded"},
	KindLLMFailure:     {http.StatusBadGateway, ErrLLM, "The AI service is currently unavailable. Please try again later."},
	KindAgentFailure:   {http.StatusInternalServerError, ErrAgent, "Failed to process your query. Please try again."},
	KindTimeout:        {http.StatusGatewayTimeout, ErrTimeout, "Request timeout"},
}

// Kinds returns every member of the failure set in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindValidation, KindAuthentication, KindAuthorization, KindNotFound,
		KindRateLimit, KindLLMFailure, KindAgentFailure, KindTimeout,
	}
}

// DefaultStatus returns the HTTP status paired with kind, or 500 for unknown kinds.
func (k Kind) DefaultStatus() int {
	if s, ok := kindTable[k]; ok {
		return s.status
	}
	return http.StatusInternalServerError
}

// DefaultCode returns the error code paired with kind.
func (k Kind) DefaultCode() ErrorCode {
	if s, ok := kindTable[k]; ok {
		return s.code
	}
	return ErrInternalServerError
}

// Error is a classified application failure. It is created once at the failure
// site and travels unchanged to the responder; the With* helpers return copies.
type Error struct {
	Kind       Kind           `json:"kind"`
	HTTPStatus int            `json:"http_status"`
	Code       ErrorCode      `json:"code"`
	Detail     string         `json:"detail"`
	Extra      map[string]any `json:"extra,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Detail, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Detail)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error of the given kind with its default status and code.
// An empty detail falls back to the kind's default message.
func NewError(kind Kind, detail string) *Error {
	spec, ok := kindTable[kind]
	if !ok {
		spec = kindSpec{http.StatusInternalServerError, ErrInternalServerError, "Internal server error"}
	}
	if detail == "" {
		detail = spec.detail
	}
	return &Error{
		Kind:       kind,
		HTTPStatus: spec.status,
		Code:       spec.code,
		Detail:     detail,
	}
}

func (e *Error) clone() *Error {
	c := *e
	if e.Extra != nil {
		c.Extra = maps.Clone(e.Extra)
	}
	return &c
}

// WithStatus returns a copy with the HTTP status overridden.
func (e *Error) WithStatus(status int) *Error {
	c := e.clone()
	c.HTTPStatus = status
	return c
}

// WithCode returns a copy with the error code overridden.
func (e *Error) WithCode(code ErrorCode) *Error {
	c := e.clone()
	c.Code = code
	return c
}

// WithExtra returns a copy with key set in the extra context.
func (e *Error) WithExtra(key string, value any) *Error {
	c := e.clone()
	if c.Extra == nil {
		c.Extra = make(map[string]any, 1)
	}
	c.Extra[key] = value
	return c
}

// WithCause returns a copy that wraps cause.
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.Cause = cause
	return c
}

// =============================================================================
// Constructors
// =============================================================================

// NewValidationError 请求参数校验失败 (400)
func NewValidationError(detail string) *Error { return NewError(KindValidation, detail) }

// NewAuthenticationError 未认证 (401)
func NewAuthenticationError(detail string) *Error { return NewError(KindAuthentication, detail) }

// NewAuthorizationError 权限不足 (403)
func NewAuthorizationError(detail string) *Error { return NewError(KindAuthorization, detail) }

// NewNotFoundError 资源不存在 (404)
func NewNotFoundError(detail string) *Error { return NewError(KindNotFound, detail) }

// NewRateLimitError 触发限流 (429)
func NewRateLimitError(detail string) *Error { return NewError(KindRateLimit, detail) }

// NewLLMError 上游 LLM 服务失败 (默认 502)
func NewLLMError(detail string) *Error { return NewError(KindLLMFailure, detail) }

// NewAgentError Agent 执行失败 (500)
func NewAgentError(detail string) *Error { return NewError(KindAgentFailure, detail) }

// NewTimeoutError 请求超时 (504)
func NewTimeoutError(detail string) *Error { return NewError(KindTimeout, detail) }

// =============================================================================
// Helpers
// =============================================================================

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries a classified failure of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
