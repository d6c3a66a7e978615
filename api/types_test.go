package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEvent_MarshalVariants(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
		want  string
	}{
		{"token", TokenEvent("Hel"), `{"type":"token","content":"Hel"}`},
		{"empty token keeps content", TokenEvent(""), `{"type":"token","content":""}`},
		{"error", ErrorEvent("AGENT_ERROR", "Failed to process your query"), `{"type":"error","error":"AGENT_ERROR","message":"Failed to process your query"}`},
		{"done", DoneEvent(), `{"type":"done"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestStreamEvent_MultilineContentStaysOnOneLine(t *testing.T) {
	data, err := json.Marshal(TokenEvent("line one\nline two\r\n"))
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(string(data), "\r\n"))

	var back StreamEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "line one\nline two\r\n", back.Content)
}

func TestStreamEvent_UnknownTypeFails(t *testing.T) {
	_, err := json.Marshal(StreamEvent{Type: "status"})
	assert.Error(t, err)
}

func TestStreamEvent_IsTerminal(t *testing.T) {
	assert.False(t, TokenEvent("x").IsTerminal())
	assert.True(t, DoneEvent().IsTerminal())
	assert.True(t, ErrorEvent("LLM_ERROR", "x").IsTerminal())
}

func TestValidationErrorResponse_FlatJSON(t *testing.T) {
	resp := ValidationErrorResponse{
		ErrorResponse: ErrorResponse{
			Error:     "VALIDATION_ERROR",
			Detail:    "Request validation failed",
			Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			Extra:     map[string]any{},
		},
		ValidationErrors: []ValidationErrorDetail{
			{Field: "body.query", Message: "Field required", Type: "missing"},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "VALIDATION_ERROR", flat["error"])
	assert.Equal(t, "2024-01-15T10:30:00Z", flat["timestamp"])
	assert.NotContains(t, flat, "request_id")
	assert.Len(t, flat["validation_errors"], 1)
}
