package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/agent"
	"github.com/BaSui01/agentsbackend/api"
	"github.com/BaSui01/agentsbackend/types"
)

// =============================================================================
// 📡 SSE 帧写入
// =============================================================================

// Client-facing messages of stream error frames.
const (
	streamLLMMessage     = "The AI service is currently unavailable"
	streamAgentMessage   = "Failed to process your query"
	streamTimeoutMessage = "Request timed out while processing your query"
)

// EventSink receives stream events in order.
type EventSink interface {
	Send(ev api.StreamEvent) error
}

// SSEWriter frames events as "data: <json>\n\n" and flushes after each one.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSEWriter wraps w.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	return &SSEWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteHeaders commits the 200 status and the event-stream headers. After
// this call failures can only be reported as frames.
func (s *SSEWriter) WriteHeaders() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲
	s.w.WriteHeader(http.StatusOK)
	s.flush()
}

// Send writes one frame.
func (s *SSEWriter) Send(ev api.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.flush()
}

func (s *SSEWriter) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// =============================================================================
// 🔁 流式帧转换
// =============================================================================

// StreamStats summarises one framed stream.
type StreamStats struct {
	// Tokens is the number of token frames sent.
	Tokens int
	// Terminal is the type of the terminal frame, empty if none was sent.
	Terminal api.StreamEventType
	// Code is the error code of a terminal error frame.
	Code string
	// Disconnected is set when the client went away or a write failed.
	Disconnected bool
}

// FrameStream forwards agent events to sink until exactly one terminal frame
// has been sent: a done frame on completion, or a sanitised error frame when
// the stream fails. It checks ctx before each frame and sends nothing more
// once ctx is done. The stream is always closed.
func FrameStream(ctx context.Context, stream agent.EventStream, sink EventSink, logger *zap.Logger) StreamStats {
	defer stream.Close()
	if logger == nil {
		logger = zap.NewNop()
	}

	var stats StreamStats
	span := trace.SpanFromContext(ctx)

	send := func(ev api.StreamEvent) bool {
		if ctx.Err() != nil {
			stats.Disconnected = true
			return false
		}
		if err := sink.Send(ev); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
			stats.Disconnected = true
			return false
		}
		return true
	}

	finish := func(ev api.StreamEvent) StreamStats {
		if send(ev) {
			stats.Terminal = ev.Type
			stats.Code = ev.Error
			span.AddEvent("stream.terminal", trace.WithAttributes(
				attribute.String("stream.terminal", string(ev.Type)),
				attribute.Int("stream.tokens", stats.Tokens),
			))
		}
		return stats
	}

	for {
		if ctx.Err() != nil {
			stats.Disconnected = true
			return stats
		}

		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return finish(api.DoneEvent())
		}
		if err != nil {
			if ctx.Err() != nil {
				stats.Disconnected = true
				return stats
			}
			frame := streamFailureEvent(err)
			logStreamFailure(logger, frame, stats.Tokens, err)
			return finish(frame)
		}

		switch ev.Type {
		case agent.EventToken:
			if !send(api.TokenEvent(ev.Content)) {
				return stats
			}
			stats.Tokens++
		case agent.EventDone:
			return finish(api.DoneEvent())
		default:
			logger.Debug("skipping unknown agent event", zap.String("type", string(ev.Type)))
		}
	}
}

// streamFailureEvent picks the terminal error frame for err. Validation
// failures keep their message; everything else gets a fixed message.
func streamFailureEvent(err error) api.StreamEvent {
	if typed, ok := types.AsError(err); ok {
		switch typed.Kind {
		case types.KindValidation:
			return api.ErrorEvent(string(types.ErrValidation), typed.Detail)
		case types.KindTimeout:
			return api.ErrorEvent(string(types.ErrTimeout), streamTimeoutMessage)
		}
	}

	var invalid *types.RequestValidationError
	if errors.As(err, &invalid) {
		return api.ErrorEvent(string(types.ErrValidation), Classify(invalid).Detail)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return api.ErrorEvent(string(types.ErrTimeout), streamTimeoutMessage)
	}
	if types.IsLLMFailure(err) {
		return api.ErrorEvent(string(types.ErrLLM), streamLLMMessage)
	}
	return api.ErrorEvent(string(types.ErrAgent), streamAgentMessage)
}

func logStreamFailure(logger *zap.Logger, frame api.StreamEvent, tokens int, err error) {
	fields := []zap.Field{
		zap.String("error_code", frame.Error),
		zap.Int("tokens_sent", tokens),
		zap.Error(err),
	}
	if frame.Error == string(types.ErrValidation) {
		logger.Warn("validation error in stream", fields...)
		return
	}
	logger.Error("streaming failed", fields...)
}
