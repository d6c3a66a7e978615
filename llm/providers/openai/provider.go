// =============================================================================
// Agents Backend OpenAI Provider
// =============================================================================
// Wraps the go-openai SDK behind llm.Provider. Upstream failures are returned
// as structured types.Error values so callers never parse error text.
// =============================================================================

package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/internal/tlsutil"
	"github.com/BaSui01/agentsbackend/llm"
	"github.com/BaSui01/agentsbackend/types"
)

// ProviderName is the identifier reported by Name.
const ProviderName = "openai"

// DefaultModel is used when neither the request nor the config names a model.
const DefaultModel = "gpt-4o-mini"

// timeoutDetail is the user-facing message for upstream deadlines.
const timeoutDetail = "Request timed out while processing your query"

// Config holds the configuration for the OpenAI provider.
type Config struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// BaseURL overrides the API base URL (e.g. an Azure or proxy endpoint ending in /v1).
	BaseURL string

	// Model is the default chat model.
	Model string

	// Timeout bounds every upstream call, streaming included. Zero means no bound.
	Timeout time.Duration

	// Temperature is the default sampling temperature.
	Temperature float32

	// MaxTokens caps generated tokens per call. Zero leaves it to the API.
	MaxTokens int
}

// Provider implements llm.Provider on top of go-openai.
type Provider struct {
	client *goopenai.Client
	cfg    Config
	logger *zap.Logger
}

// New creates an OpenAI provider.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = tlsutil.LLMHTTPClient()
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "llm"), zap.String("provider", ProviderName)),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Completion issues a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, p.mapError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewLLMError("").
			WithExtra("provider", ProviderName).
			WithCause(errors.New("openai returned no choices"))
	}

	p.logger.Debug("completion finished",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return &llm.ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream issues a streaming chat completion. The returned stream owns the
// timeout context and must be closed by the caller.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (llm.TokenStream, error) {
	ctx, cancel := p.withTimeout(ctx)

	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
	if err != nil {
		cancel()
		return nil, p.mapError(ctx, err)
	}

	return &tokenStream{ctx: ctx, cancel: cancel, stream: stream, provider: p}, nil
}

// HealthCheck lists models as a cheap authenticated round trip.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	if _, err := p.client.ListModels(ctx); err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: time.Since(start)}, p.mapError(ctx, err)
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Since(start)}, nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, p.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Provider) buildRequest(req *llm.ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}

	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	return goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}

// mapError converts SDK and transport failures into classified errors.
// Cancellation by the caller is returned as-is.
func (p *Provider) mapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewTimeoutError(timeoutDetail).
			WithExtra("provider", ProviderName).
			WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	llmErr := types.NewLLMError("").WithExtra("provider", ProviderName)

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		llmErr = llmErr.WithExtra("upstream_status", apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		llmErr = llmErr.WithExtra("upstream_status", reqErr.HTTPStatusCode)
	}

	p.logger.Warn("upstream call failed", zap.Error(err))
	return llmErr.WithCause(fmt.Errorf("openai: %w", err))
}

// tokenStream adapts a go-openai stream to llm.TokenStream.
type tokenStream struct {
	ctx      context.Context
	cancel   context.CancelFunc
	stream   *goopenai.ChatCompletionStream
	provider *Provider
}

// Recv returns the next non-empty content delta, or io.EOF when done.
func (s *tokenStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", s.provider.mapError(s.ctx, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

// Close releases the upstream connection.
func (s *tokenStream) Close() error {
	s.stream.Close()
	s.cancel()
	return nil
}
