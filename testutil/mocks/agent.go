// MockAgent 的研究代理测试模拟实现。
//
// 支持固定结果、脚本化事件流与错误注入场景。
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/BaSui01/agentsbackend/agent"
)

// MockAgent 是 agent.Agent 的模拟实现
type MockAgent struct {
	mu sync.Mutex

	result    *agent.Result
	invokeErr error
	invokeFn  func(ctx context.Context, in agent.Input) (*agent.Result, error)

	events    []agent.Event
	streamErr error
	openErr   error
	streams   []*ScriptedStream

	inputs []agent.Input
}

// NewMockAgent 创建新的 MockAgent
func NewMockAgent() *MockAgent {
	return &MockAgent{
		result: &agent.Result{
			ResearchSummary:   "Mock summary",
			ResearchDocuments: "1. Mock document",
		},
	}
}

// WithResult 设置 Invoke 返回的结果
func (m *MockAgent) WithResult(r *agent.Result) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = r
	return m
}

// WithInvokeError 设置 Invoke 返回的错误
func (m *MockAgent) WithInvokeError(err error) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeErr = err
	return m
}

// WithInvokeFunc 设置自定义 Invoke 函数
func (m *MockAgent) WithInvokeFunc(fn func(ctx context.Context, in agent.Input) (*agent.Result, error)) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeFn = fn
	return m
}

// WithEvents 设置流式事件脚本
func (m *MockAgent) WithEvents(events ...agent.Event) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = events
	return m
}

// WithTokens 设置只包含 token 事件的脚本（不含 done，由消费方在 io.EOF 时补发）
func (m *MockAgent) WithTokens(tokens ...string) *MockAgent {
	events := make([]agent.Event, len(tokens))
	for i, t := range tokens {
		events[i] = agent.TokenEvent(t)
	}
	return m.WithEvents(events...)
}

// WithStreamError 设置脚本事件发送完之后 Recv 返回的错误
func (m *MockAgent) WithStreamError(err error) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr = err
	return m
}

// WithOpenError 设置 Stream 本身返回的错误
func (m *MockAgent) WithOpenError(err error) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
	return m
}

// Name 返回代理名称
func (m *MockAgent) Name() string { return "mock_agent" }

// Invoke 返回预设结果或错误
func (m *MockAgent) Invoke(ctx context.Context, in agent.Input) (*agent.Result, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	fn, result, err := m.invokeFn, m.result, m.invokeErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, in)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stream 返回脚本化事件流
func (m *MockAgent) Stream(ctx context.Context, in agent.Input) (agent.EventStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, in)
	if m.openErr != nil {
		return nil, m.openErr
	}

	s := NewScriptedStream(m.events...).WithError(m.streamErr)
	m.streams = append(m.streams, s)
	return s, nil
}

// Inputs 返回所有调用输入
func (m *MockAgent) Inputs() []agent.Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agent.Input, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// Streams 返回 Stream 创建过的所有流
func (m *MockAgent) Streams() []*ScriptedStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ScriptedStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// --- ScriptedStream ---

// ScriptedStream 按脚本返回事件的 agent.EventStream
type ScriptedStream struct {
	mu     sync.Mutex
	events []agent.Event
	err    error
	pos    int
	recvs  int
	closed bool
}

// NewScriptedStream 创建脚本化事件流
func NewScriptedStream(events ...agent.Event) *ScriptedStream {
	return &ScriptedStream{events: events}
}

// WithError 设置事件发送完之后返回的错误（nil 表示 io.EOF）
func (s *ScriptedStream) WithError(err error) *ScriptedStream {
	s.err = err
	return s
}

// Recv 返回下一个事件
func (s *ScriptedStream) Recv() (agent.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recvs++
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.err != nil {
		return agent.Event{}, s.err
	}
	return agent.Event{}, io.EOF
}

// Close 标记流已关闭
func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed 返回流是否已被关闭
func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Recvs 返回 Recv 被调用的次数
func (s *ScriptedStream) Recvs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvs
}
