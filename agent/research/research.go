package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/agent"
	"github.com/BaSui01/agentsbackend/internal/telemetry"
	"github.com/BaSui01/agentsbackend/llm"
	"github.com/BaSui01/agentsbackend/types"
)

// AgentName is reported by Name and used as a log/trace attribute.
const AgentName = "research_agent"

const (
	researchPrompt = `You are a meticulous research assistant.
Collect the facts, findings, sources and open questions that are relevant to the user's query.
Respond with a numbered list of concise research notes. Do not write a conclusion.`

	summaryPrompt = `You are a research analyst.
Using only the research notes provided, write a clear and well structured summary that answers the user's query.
Call out uncertainty where the notes disagree or are incomplete.`
)

// Config tunes the two LLM calls of a research run.
type Config struct {
	// Model overrides the provider's default model. Empty uses the provider default.
	Model string
	// Temperature for both steps.
	Temperature float32
	// MaxTokens caps each step's generation. Zero leaves it to the provider.
	MaxTokens int
}

// Agent runs a two-step workflow: gather research notes for the query, then
// summarise them. Streaming emits the tokens of the summary step.
type Agent struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

var _ agent.Agent = (*Agent)(nil)

// New creates a research agent over provider.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "agent"), zap.String("agent", AgentName)),
		tracer:   telemetry.Tracer(telemetry.ScopeResearch),
	}
}

// Name returns the agent name.
func (a *Agent) Name() string { return AgentName }

// Invoke runs both steps and returns the notes and the summary.
func (a *Agent) Invoke(ctx context.Context, in agent.Input) (*agent.Result, error) {
	query, err := normalizeQuery(in.Query)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "agent.research.invoke",
		trace.WithAttributes(attribute.Int("agent.query_length", len([]rune(query)))))
	defer span.End()

	docs, err := a.research(ctx, query)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	resp, err := a.complete(ctx, "summary", a.summaryRequest(query, docs))
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	a.logger.Debug("research run finished",
		zap.Int("documents_length", len(docs)),
		zap.Int("summary_length", len(resp.Content)),
	)

	return &agent.Result{
		ResearchSummary:   resp.Content,
		ResearchDocuments: docs,
	}, nil
}

// Stream returns a lazy event stream: the research step runs on the first
// Recv and its failures surface there.
func (a *Agent) Stream(ctx context.Context, in agent.Input) (agent.EventStream, error) {
	query, err := normalizeQuery(in.Query)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "agent.research.stream",
		trace.WithAttributes(attribute.Int("agent.query_length", len([]rune(query)))))

	return &eventStream{ctx: ctx, agent: a, query: query, span: span}, nil
}

// =============================================================================
// 🔧 工作流步骤
// =============================================================================

func (a *Agent) research(ctx context.Context, query string) (string, error) {
	resp, err := a.complete(ctx, "research", a.request(researchPrompt, query))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (a *Agent) complete(ctx context.Context, step string, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	ctx, span := a.tracer.Start(ctx, "agent.research."+step,
		trace.WithAttributes(attribute.String("llm.provider", a.provider.Name())))
	defer span.End()

	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("%s step: %w", step, err)
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	return resp, nil
}

func (a *Agent) request(system, user string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
	}
}

func (a *Agent) summaryRequest(query, docs string) *llm.ChatRequest {
	return a.request(summaryPrompt, fmt.Sprintf("Query:\n%s\n\nResearch notes:\n%s", query, docs))
}

func normalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", types.NewValidationError("Query cannot be empty")
	}
	return q, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// =============================================================================
// 📡 事件流
// =============================================================================

type eventStream struct {
	ctx    context.Context
	agent  *Agent
	query  string
	span   trace.Span
	tokens llm.TokenStream
	count  int
	done   bool
}

func (s *eventStream) Recv() (agent.Event, error) {
	if s.done {
		return agent.Event{}, io.EOF
	}

	if s.tokens == nil {
		docs, err := s.agent.research(s.ctx, s.query)
		if err != nil {
			return s.fail(err)
		}
		tokens, err := s.agent.provider.Stream(s.ctx, s.agent.summaryRequest(s.query, docs))
		if err != nil {
			return s.fail(fmt.Errorf("summary step: %w", err))
		}
		s.tokens = tokens
	}

	tok, err := s.tokens.Recv()
	if errors.Is(err, io.EOF) {
		s.done = true
		s.span.SetAttributes(attribute.Int("agent.tokens", s.count))
		return agent.DoneEvent(), nil
	}
	if err != nil {
		return s.fail(fmt.Errorf("summary step: %w", err))
	}

	s.count++
	return agent.TokenEvent(tok), nil
}

func (s *eventStream) fail(err error) (agent.Event, error) {
	s.done = true
	recordError(s.span, err)
	return agent.Event{}, err
}

func (s *eventStream) Close() error {
	defer s.span.End()
	if s.tokens != nil {
		return s.tokens.Close()
	}
	return nil
}
