package agent

import (
	"context"
	"io"
)

// EventType 代理流式事件类型
type EventType string

const (
	// EventToken 一个生成的 Token
	EventToken EventType = "token"
	// EventDone 代理已完成生成
	EventDone EventType = "done"
)

// Event 代理流中的一个事件。失败不作为事件出现，而是由 EventStream.Recv 以 error 返回。
type Event struct {
	Type    EventType
	Content string
}

// TokenEvent 构造 token 事件
func TokenEvent(content string) Event {
	return Event{Type: EventToken, Content: content}
}

// DoneEvent 构造 done 事件
func DoneEvent() Event {
	return Event{Type: EventDone}
}

// Input 代理输入
type Input struct {
	Query string
}

// Result 代理同步调用结果
type Result struct {
	ResearchSummary   string
	ResearchDocuments string
}

// EventStream is a pull-based, single-pass sequence of agent events.
// Recv returns io.EOF once the sequence is exhausted. Close may be called at
// any point and must be called exactly once by the consumer.
type EventStream interface {
	Recv() (Event, error)
	Close() error
}

// Agent 研究代理契约。
type Agent interface {
	// Name 返回代理名称
	Name() string

	// Invoke 同步执行，返回完整结果
	Invoke(ctx context.Context, in Input) (*Result, error)

	// Stream 流式执行。实现可以延迟到第一次 Recv 才开始工作，
	// 因此执行期间的失败通过 Recv 返回。
	Stream(ctx context.Context, in Input) (EventStream, error)
}

// FailedStream returns a stream whose first Recv fails with err.
func FailedStream(err error) EventStream {
	return &failedStream{err: err}
}

type failedStream struct {
	err  error
	sent bool
}

func (s *failedStream) Recv() (Event, error) {
	if s.sent {
		return Event{}, io.EOF
	}
	s.sent = true
	return Event{}, s.err
}

func (s *failedStream) Close() error { return nil }
