package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/internal/ctxkeys"
	"github.com/BaSui01/agentsbackend/types"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

type fakeErrorRecorder struct {
	mu    sync.Mutex
	codes []string
}

func (f *fakeErrorRecorder) RecordErrorResponse(code string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, fmt.Sprintf("%s/%d", code, status))
}

func newObservedResponder() (*ErrorResponder, *observer.ObservedLogs, *fakeErrorRecorder) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &fakeErrorRecorder{}
	return NewErrorResponder(zap.New(core), rec), logs, rec
}

func respond(t *testing.T, er *ErrorResponder, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat/research", nil)
	er.Respond(w, r, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

// =============================================================================
// 🧪 Classify 测试
// =============================================================================

func TestClassify_KindTable(t *testing.T) {
	want := map[types.Kind]struct {
		status int
		code   string
	}{
		types.KindValidation:     {400, "VALIDATION_ERROR"},
		types.KindAuthentication: {401, "AUTHENTICATION_REQUIRED"},
		types.KindAuthorization:  {403, "FORBIDDEN"},
		types.KindNotFound:       {404, "NOT_FOUND"},
		types.KindRateLimit:      {429, "RATE_LIMIT_EXCEEDED"},
		types.KindLLMFailure:     {502, "LLM_ERROR"},
		types.KindAgentFailure:   {500, "AGENT_ERROR"},
		types.KindTimeout:        {504, "TIMEOUT"},
	}

	for _, kind := range types.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			w, ok := want[kind]
			require.True(t, ok, "kind missing from table")

			c := Classify(types.NewError(kind, "something specific"))
			assert.Equal(t, w.status, c.Status)
			assert.Equal(t, w.code, c.Code)
			assert.Equal(t, "something specific", c.Detail)
			assert.Equal(t, kind, c.Kind)

			wrapped := Classify(fmt.Errorf("outer: %w", types.NewError(kind, "")))
			assert.Equal(t, w.status, wrapped.Status, "classified through wrapping")
		})
	}
}

func TestClassify_LLMStatusOverride(t *testing.T) {
	c := Classify(types.NewLLMError("").WithStatus(http.StatusServiceUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, c.Status)
	assert.Equal(t, "LLM_ERROR", c.Code)
}

func TestClassify_RequestValidation(t *testing.T) {
	err := types.NewRequestValidationError(
		types.FieldViolation{Loc: []string{"body", "query"}, Message: "Field required", Type: "missing"},
		types.FieldViolation{Loc: []string{"body", "model"}, Message: "Extra inputs are not permitted", Type: "extra_forbidden"},
	)

	c := Classify(err)
	assert.Equal(t, http.StatusUnprocessableEntity, c.Status)
	assert.Equal(t, "VALIDATION_ERROR", c.Code)
	assert.Equal(t, []api.ValidationErrorDetail{
		{Field: "body.query", Message: "Field required", Type: "missing"},
		{Field: "body.model", Message: "Extra inputs are not permitted", Type: "extra_forbidden"},
	}, c.Violations)
	assert.Equal(t, "Request validation failed: body.query: Field required; body.model: Extra inputs are not permitted", c.Detail)

	_, isValidation := c.Envelope("", time.Now()).(api.ValidationErrorResponse)
	assert.True(t, isValidation)
}

func TestClassify_HTTPError(t *testing.T) {
	c := Classify(types.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, c.Status)
	assert.Equal(t, "HTTP_413", c.Code)
	assert.Equal(t, "Request body too large", c.Detail)
	assert.Empty(t, c.Kind)
}

func TestClassify_RateLimitMessageIsLLMError(t *testing.T) {
	c := Classify(errors.New("rate limit exceeded"))
	assert.Equal(t, http.StatusBadGateway, c.Status)
	assert.Equal(t, "LLM_ERROR", c.Code)
	assert.NotContains(t, c.Detail, "rate limit exceeded")
}

func TestClassify_StructureWinsOverKeywords(t *testing.T) {
	c := Classify(types.NewAgentError("").WithCause(errors.New("openai quota exhausted")))
	assert.Equal(t, "AGENT_ERROR", c.Code)
}

func TestClassify_UnclassifiedNeverEchoes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-z0-9]{12,32}`).
			Filter(func(s string) bool { return !types.MentionsLLMProvider(s) }).
			Draw(t, "word")
		msg := "internal failure " + word

		c := Classify(errors.New(msg))
		if c.Status != http.StatusInternalServerError || c.Code != "INTERNAL_SERVER_ERROR" {
			t.Fatalf("got %d %s", c.Status, c.Code)
		}

		body, err := json.Marshal(c.Envelope("req-1", time.Now()))
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(body), word) {
			t.Fatalf("envelope echoes the error text: %s", body)
		}
		if strings.Contains(string(body), "*errors.errorString") {
			t.Fatalf("envelope leaks the error type: %s", body)
		}
	})
}

func TestClassify_KeywordIsLLMError(t *testing.T) {
	keywords := types.LLMKeywords()

	rapid.Check(t, func(t *rapid.T) {
		kw := rapid.SampledFrom(keywords).Draw(t, "keyword")
		upper := rapid.SliceOfN(rapid.Bool(), len(kw), len(kw)).Draw(t, "upper")
		var b strings.Builder
		for i, r := range kw {
			if upper[i] {
				b.WriteString(strings.ToUpper(string(r)))
			} else {
				b.WriteRune(r)
			}
		}
		prefix := rapid.StringMatching(`[a-z ]{0,10}`).Draw(t, "prefix")
		suffix := rapid.StringMatching(`[a-z ]{0,10}`).Draw(t, "suffix")
		msg := prefix + b.String() + suffix

		c := Classify(errors.New(msg))
		if c.Code != "LLM_ERROR" || c.Status != http.StatusBadGateway {
			t.Fatalf("%q classified as %d %s", msg, c.Status, c.Code)
		}
		if c.Detail == msg {
			t.Fatalf("detail echoes the message")
		}
	})
}

func TestSanitizeExtra(t *testing.T) {
	extra := map[string]any{
		"query_length":  12,
		"api_key":       "sk-123",
		"Authorization": "Bearer x",
		"user_password": "hunter2",
		"auth_token":    "t",
		"credentials":   "c",
		"client_secret": "s",
		"callback":      func() {},
		"provider":      "openai",
	}

	assert.Equal(t, map[string]any{"query_length": 12, "provider": "openai"}, sanitizeExtra(extra))
	assert.NotNil(t, sanitizeExtra(nil))
}

// =============================================================================
// 🧪 ErrorResponder 测试
// =============================================================================

func TestErrorResponder_Envelope(t *testing.T) {
	er, _, rec := newObservedResponder()
	er.now = func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600)) }

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat/research", nil)
	r = r.WithContext(ctxkeys.WithRequestID(r.Context(), "req-42"))

	er.Respond(w, r, types.NewValidationError("Query cannot be empty").WithExtra("query_length", 0))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"error": "VALIDATION_ERROR",
		"detail": "Query cannot be empty",
		"timestamp": "2024-01-15T09:30:00Z",
		"request_id": "req-42",
		"extra": {"query_length": 0}
	}`, w.Body.String())
	assert.Equal(t, []string{"VALIDATION_ERROR/400"}, rec.codes)
}

func TestErrorResponder_ExtraIsAlwaysObject(t *testing.T) {
	er, _, _ := newObservedResponder()
	_, body := respond(t, er, errors.New("boom"))

	assert.Equal(t, map[string]any{}, body["extra"])
	assert.NotContains(t, body, "request_id", "absent request id is omitted")
}

func TestErrorResponder_LogLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level zapcore.Level
	}{
		{"4xx warns", types.NewNotFoundError(""), zapcore.WarnLevel},
		{"422 warns", types.NewRequestValidationError(types.FieldViolation{Loc: []string{"body"}, Message: "JSON decode error", Type: "json_invalid"}), zapcore.WarnLevel},
		{"5xx errors", types.NewAgentError(""), zapcore.ErrorLevel},
		{"unclassified errors", errors.New("boom"), zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			er, logs, _ := newObservedResponder()
			respond(t, er, tt.err)

			entries := logs.All()
			require.Len(t, entries, 1, "logged exactly once")
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, "/api/v1/chat/research", fields["path"])
			assert.Equal(t, http.MethodPost, fields["method"])
			assert.Contains(t, fields, "request_id")
			assert.Contains(t, fields, "error_code")
		})
	}
}

func TestErrorResponder_InternalDetailOnlyInLog(t *testing.T) {
	er, logs, _ := newObservedResponder()
	_, body := respond(t, er, fmt.Errorf("wrap: %w", errors.New("database password rejected")))

	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["error"])
	assert.Equal(t, internalErrorDetail, body["detail"])

	entry := logs.All()[0]
	assert.Contains(t, entry.ContextMap()["error"], "database password rejected")
	assert.Equal(t, "*errors.errorString", entry.ContextMap()["error_type"])
}

func TestErrorResponder_Idempotent(t *testing.T) {
	errs := []error{
		errors.New("boom"),
		errors.New("OpenAI API returned 500"),
		types.NewTimeoutError(""),
		types.NewHTTPError(http.StatusMethodNotAllowed, ""),
	}

	for _, err := range errs {
		er, _, _ := newObservedResponder()
		_, first := respond(t, er, err)
		_, second := respond(t, er, err)

		for _, body := range []map[string]any{first, second} {
			delete(body, "timestamp")
			delete(body, "request_id")
		}
		assert.Equal(t, first, second, "%v", err)
	}
}
