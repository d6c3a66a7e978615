package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError_KindTable(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   ErrorCode
	}{
		{KindValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{KindAuthentication, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
		{KindAuthorization, http.StatusForbidden, "FORBIDDEN"},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{KindRateLimit, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{KindLLMFailure, http.StatusBadGateway, "LLM_ERROR"},
		{KindAgentFailure, http.StatusInternalServerError, "AGENT_ERROR"},
		{KindTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
	}

	require.Len(t, tests, len(Kinds()))
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := NewError(tt.kind, "")
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.code, err.Code)
			assert.NotEmpty(t, err.Detail)
			assert.Equal(t, tt.status, tt.kind.DefaultStatus())
			assert.Equal(t, tt.code, tt.kind.DefaultCode())
		})
	}
}

func TestError_WithHelpersReturnCopies(t *testing.T) {
	root := errors.New("root")
	orig := NewLLMError("upstream failed").WithExtra("provider", "openai")

	overridden := orig.WithStatus(http.StatusGatewayTimeout).
		WithCode(ErrTimeout).
		WithExtra("attempt", 2).
		WithCause(root)

	assert.Equal(t, http.StatusBadGateway, orig.HTTPStatus)
	assert.Equal(t, ErrLLM, orig.Code)
	assert.Nil(t, orig.Cause)
	assert.Equal(t, map[string]any{"provider": "openai"}, orig.Extra)

	assert.Equal(t, http.StatusGatewayTimeout, overridden.HTTPStatus)
	assert.Equal(t, ErrTimeout, overridden.Code)
	assert.Equal(t, 2, overridden.Extra["attempt"])
	assert.True(t, errors.Is(overridden, root))
	assert.Contains(t, overridden.Error(), "root")
}

func TestAsError_ThroughWrapping(t *testing.T) {
	base := NewTimeoutError("took too long")
	wrapped := fmt.Errorf("invoke agent: %w", base)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.True(t, IsKind(wrapped, KindTimeout))
	assert.False(t, IsKind(wrapped, KindValidation))

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestRequestValidationError(t *testing.T) {
	err := NewRequestValidationError(
		FieldViolation{Loc: []string{"body", "query"}, Message: "Field required", Type: "missing"},
	)
	assert.Equal(t, "body.query", err.Violations[0].Field())
	assert.Contains(t, err.Error(), "body.query: Field required")
}

func TestHTTPError_DefaultDetail(t *testing.T) {
	err := NewHTTPError(http.StatusMethodNotAllowed, "")
	assert.Equal(t, "Method Not Allowed", err.Detail)
	assert.Equal(t, "HTTP 405: Method Not Allowed", err.Error())
}

func TestMentionsLLMProvider(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"OpenAI returned 500", true},
		{"Rate Limit exceeded", true},
		{"insufficient QUOTA", true},
		{"upstream timeout", true},
		{"bad API key", true},
		{"nil pointer dereference", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MentionsLLMProvider(tt.msg), tt.msg)
	}
}

func TestIsLLMFailure_StructureWins(t *testing.T) {
	// A classified agent failure is never reclassified by its wording.
	assert.False(t, IsLLMFailure(NewAgentError("api quota")))
	assert.True(t, IsLLMFailure(NewLLMError("")))
	assert.True(t, IsLLMFailure(errors.New("openai: connection reset")))
	assert.False(t, IsLLMFailure(errors.New("division by zero")))
	assert.False(t, IsLLMFailure(nil))
}

func TestMentionsLLMProvider_CaseInsensitiveProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	keywords := LLMKeywords()
	properties.Property("any casing of a keyword embedded in text matches", prop.ForAll(
		func(prefix, suffix string, idx int, upper bool) bool {
			kw := keywords[idx%len(keywords)]
			if upper {
				kw = toUpperASCII(kw)
			}
			return MentionsLLMProvider(prefix + kw + suffix)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
