package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/types"
)

// =============================================================================
// 🛡️ 请求结构校验
// =============================================================================

// Violation types reported in validation_errors[].type.
const (
	ViolationJSONInvalid    = "json_invalid"
	ViolationNotObject      = "model_attributes_type"
	ViolationExtraForbidden = "extra_forbidden"
	ViolationMissing        = "missing"
	ViolationStringType     = "string_type"
	ViolationTooShort       = "string_too_short"
	ViolationTooLong        = "string_too_long"
	ViolationValueError     = "value_error"
)

// QueryLimits bounds the research request.
type QueryLimits struct {
	MinLength    int
	MaxLength    int
	MaxBodyBytes int64
}

// DefaultQueryLimits matches the configuration defaults.
var DefaultQueryLimits = QueryLimits{MinLength: 1, MaxLength: 10000, MaxBodyBytes: 1 << 20}

var chatRequestFields = []string{"query"}

// DecodeChatRequest reads and validates a research request body. Shape
// problems return *types.RequestValidationError with every violation; an
// oversized body returns *types.HTTPError 413.
func DecodeChatRequest(r *http.Request, limits QueryLimits) (*api.ChatRequest, error) {
	body, err := readBody(r, limits.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, types.NewRequestValidationError(types.FieldViolation{
				Loc:     []string{"body"},
				Message: "Input should be a valid dictionary or object to extract fields from",
				Type:    ViolationNotObject,
			})
		}
		return nil, types.NewRequestValidationError(types.FieldViolation{
			Loc:     []string{"body"},
			Message: "JSON decode error",
			Type:    ViolationJSONInvalid,
		})
	}
	if fields == nil {
		// literal null
		return nil, types.NewRequestValidationError(types.FieldViolation{
			Loc:     []string{"body"},
			Message: "Field required",
			Type:    ViolationMissing,
		})
	}

	var violations []types.FieldViolation
	req := &api.ChatRequest{}

	raw, ok := fields["query"]
	if !ok {
		violations = append(violations, types.FieldViolation{
			Loc:     []string{"body", "query"},
			Message: "Field required",
			Type:    ViolationMissing,
		})
	} else if v := checkQuery(raw, limits); v != nil {
		violations = append(violations, *v)
	} else {
		_ = json.Unmarshal(raw, &req.Query)
	}

	extras := make([]string, 0, len(fields))
	for name := range fields {
		if !slices.Contains(chatRequestFields, name) {
			extras = append(extras, name)
		}
	}
	slices.Sort(extras)
	for _, name := range extras {
		violations = append(violations, types.FieldViolation{
			Loc:     []string{"body", name},
			Message: "Extra inputs are not permitted",
			Type:    ViolationExtraForbidden,
		})
	}

	if len(violations) > 0 {
		return nil, types.NewRequestValidationError(violations...)
	}
	return req, nil
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	reader := io.Reader(r.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(r.Body, maxBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, types.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return nil, types.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, types.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
	}
	return body, nil
}

func checkQuery(raw json.RawMessage, limits QueryLimits) *types.FieldViolation {
	loc := []string{"body", "query"}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return &types.FieldViolation{Loc: loc, Message: "Input should be a valid string", Type: ViolationStringType}
	}

	var q string
	if err := json.Unmarshal(trimmed, &q); err != nil {
		return &types.FieldViolation{Loc: loc, Message: "Input should be a valid string", Type: ViolationStringType}
	}

	n := utf8.RuneCountInString(q)
	switch {
	case limits.MinLength > 0 && n < limits.MinLength:
		return &types.FieldViolation{
			Loc:     loc,
			Message: fmt.Sprintf("String should have at least %d %s", limits.MinLength, characters(limits.MinLength)),
			Type:    ViolationTooShort,
		}
	case limits.MaxLength > 0 && n > limits.MaxLength:
		return &types.FieldViolation{
			Loc:     loc,
			Message: fmt.Sprintf("String should have at most %d %s", limits.MaxLength, characters(limits.MaxLength)),
			Type:    ViolationTooLong,
		}
	case strings.TrimSpace(q) == "":
		return &types.FieldViolation{
			Loc:     loc,
			Message: "Value error, Query cannot be empty or whitespace only",
			Type:    ViolationValueError,
		}
	}
	return nil
}

func characters(n int) string {
	if n == 1 {
		return "character"
	}
	return "characters"
}
