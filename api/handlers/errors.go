package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/internal/ctxkeys"
	"github.com/BaSui01/agentsbackend/types"
)

// =============================================================================
// 🧭 错误分类
// =============================================================================

const (
	validationFailedDetail = "Request validation failed"
	internalErrorDetail    = "An unexpected error occurred. Please try again later."
)

// secretMarkers are key fragments that never reach a client through extra.
var secretMarkers = []string{"key", "token", "secret", "password", "authorization", "credential"}

// Classification is the rendered form of a failure: status, code, detail and
// the client-visible context. It never carries the raw error text.
type Classification struct {
	Status     int
	Code       string
	Detail     string
	Extra      map[string]any
	Violations []api.ValidationErrorDetail
	// Kind is empty for transport faults and unclassified errors.
	Kind types.Kind
}

// Classify maps err to a Classification. First match wins:
// *types.Error, *types.RequestValidationError, *types.HTTPError, then the LLM
// keyword heuristic, then INTERNAL_SERVER_ERROR.
func Classify(err error) Classification {
	var typed *types.Error
	if errors.As(err, &typed) {
		return Classification{
			Status: typed.HTTPStatus,
			Code:   string(typed.Code),
			Detail: typed.Detail,
			Extra:  sanitizeExtra(typed.Extra),
			Kind:   typed.Kind,
		}
	}

	var invalid *types.RequestValidationError
	if errors.As(err, &invalid) {
		details := make([]api.ValidationErrorDetail, len(invalid.Violations))
		parts := make([]string, len(invalid.Violations))
		for i, v := range invalid.Violations {
			details[i] = api.ValidationErrorDetail{Field: v.Field(), Message: v.Message, Type: v.Type}
			parts[i] = v.Field() + ": " + v.Message
		}
		detail := validationFailedDetail
		if len(parts) > 0 {
			detail += ": " + strings.Join(parts, "; ")
		}
		return Classification{
			Status:     http.StatusUnprocessableEntity,
			Code:       string(types.ErrValidation),
			Detail:     detail,
			Extra:      map[string]any{},
			Violations: details,
			Kind:       types.KindValidation,
		}
	}

	var httpErr *types.HTTPError
	if errors.As(err, &httpErr) {
		return Classification{
			Status: httpErr.Status,
			Code:   fmt.Sprintf("HTTP_%d", httpErr.Status),
			Detail: httpErr.Detail,
			Extra:  map[string]any{},
		}
	}

	if err != nil && types.MentionsLLMProvider(err.Error()) {
		llmErr := types.NewLLMError("")
		return Classification{
			Status: llmErr.HTTPStatus,
			Code:   string(llmErr.Code),
			Detail: llmErr.Detail,
			Extra:  map[string]any{},
			Kind:   types.KindLLMFailure,
		}
	}

	return Classification{
		Status: http.StatusInternalServerError,
		Code:   string(types.ErrInternalServerError),
		Detail: internalErrorDetail,
		Extra:  map[string]any{},
	}
}

// Envelope builds the response body for c. Validation failures with
// violations render as api.ValidationErrorResponse.
func (c Classification) Envelope(requestID string, now time.Time) any {
	resp := api.ErrorResponse{
		Error:     c.Code,
		Detail:    c.Detail,
		Timestamp: now.UTC(),
		RequestID: requestID,
		Extra:     c.Extra,
	}
	if resp.Extra == nil {
		resp.Extra = map[string]any{}
	}
	if c.Violations != nil {
		return api.ValidationErrorResponse{ErrorResponse: resp, ValidationErrors: c.Violations}
	}
	return resp
}

// sanitizeExtra returns a copy of extra without secret-looking keys or values
// that cannot be encoded as JSON.
func sanitizeExtra(extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		if isSecretKey(k) {
			continue
		}
		if _, err := json.Marshal(v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(k string) bool {
	lower := strings.ToLower(k)
	for _, m := range secretMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// =============================================================================
// 📤 错误响应
// =============================================================================

// ErrorRecorder receives one observation per rendered error envelope.
type ErrorRecorder interface {
	RecordErrorResponse(code string, status int)
}

// ErrorResponder is the single place where failures become HTTP responses.
type ErrorResponder struct {
	logger   *zap.Logger
	recorder ErrorRecorder
	now      func() time.Time
}

// NewErrorResponder creates an ErrorResponder. recorder may be nil.
func NewErrorResponder(logger *zap.Logger, recorder ErrorRecorder) *ErrorResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorResponder{
		logger:   logger.With(zap.String("component", "error_responder")),
		recorder: recorder,
		now:      time.Now,
	}
}

// Respond classifies err, logs it once and writes the envelope. fields are
// appended to that single log entry.
func (er *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error, fields ...zap.Field) {
	c := Classify(err)
	requestID, _ := ctxkeys.RequestID(r.Context())

	er.log(r, requestID, c, err, fields)
	if er.recorder != nil {
		er.recorder.RecordErrorResponse(c.Code, c.Status)
	}

	WriteJSON(w, c.Status, c.Envelope(requestID, er.now()))
}

func (er *ErrorResponder) log(r *http.Request, requestID string, c Classification, err error, extra []zap.Field) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", c.Status),
		zap.String("error_code", c.Code),
	}
	fields = append(fields, extra...)
	if len(c.Violations) > 0 {
		fields = append(fields, zap.Int("violations", len(c.Violations)))
	}

	if c.Status >= http.StatusInternalServerError {
		fields = append(fields,
			zap.Error(err),
			zap.String("error_type", fmt.Sprintf("%T", rootCause(err))),
		)
		er.logger.Error("request failed", fields...)
		return
	}

	fields = append(fields, zap.String("detail", c.Detail))
	er.logger.Warn("request rejected", fields...)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
