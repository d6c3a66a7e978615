package research

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentsbackend/agent"
	"github.com/BaSui01/agentsbackend/llm"
	"github.com/BaSui01/agentsbackend/testutil"
	"github.com/BaSui01/agentsbackend/testutil/fixtures"
	"github.com/BaSui01/agentsbackend/testutil/mocks"
	"github.com/BaSui01/agentsbackend/types"
)

func drain(t *testing.T, s agent.EventStream) ([]agent.Event, error) {
	t.Helper()
	var events []agent.Event
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestAgent_Invoke(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses("  "+fixtures.ResearchNotes()+"\n", "The summary.")
	a := New(provider, Config{Model: "gpt-4o", MaxTokens: 256}, zap.NewNop())

	res, err := a.Invoke(testutil.TestContext(t), agent.Input{Query: "  solid-state batteries  "})
	require.NoError(t, err)
	assert.Equal(t, "The summary.", res.ResearchSummary)
	assert.Equal(t, fixtures.ResearchNotes(), res.ResearchDocuments, "notes are trimmed")

	calls := provider.Calls()
	require.Len(t, calls, 2)

	research := calls[0].Request
	assert.Equal(t, "gpt-4o", research.Model)
	assert.Equal(t, 256, research.MaxTokens)
	require.Len(t, research.Messages, 2)
	assert.Equal(t, llm.RoleSystem, research.Messages[0].Role)
	assert.Equal(t, "solid-state batteries", research.Messages[1].Content, "query is trimmed")

	summary := calls[1].Request
	assert.Contains(t, summary.Messages[1].Content, "solid-state batteries")
	assert.Contains(t, summary.Messages[1].Content, fixtures.ResearchNotes())
}

func TestAgent_Invoke_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		provider := mocks.NewMockProvider()
		a := New(provider, Config{}, nil)

		_, err := a.Invoke(context.Background(), agent.Input{Query: q})
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.KindValidation))
		assert.Zero(t, provider.CallCount(), "no LLM call for an empty query")
	}
}

func TestAgent_Invoke_ProviderFailureKeepsKind(t *testing.T) {
	upstream := types.NewLLMError("").WithExtra("provider", "openai")
	a := New(mocks.NewMockProvider().WithError(upstream), Config{}, zap.NewNop())

	_, err := a.Invoke(context.Background(), agent.Input{Query: "q"})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindLLMFailure))
	assert.True(t, strings.HasPrefix(err.Error(), "research step:"))
}

func TestAgent_Stream(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithResponses(fixtures.ResearchNotes()).
		WithStreamChunks(fixtures.SummaryTokens()...)
	a := New(provider, Config{}, zap.NewNop())

	stream, err := a.Stream(testutil.TestContext(t), agent.Input{Query: "batteries"})
	require.NoError(t, err)
	assert.Zero(t, provider.CallCount(), "nothing runs before the first Recv")

	events, err := drain(t, stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	tokens := fixtures.SummaryTokens()
	require.Len(t, events, len(tokens)+1)
	for i, tok := range tokens {
		assert.Equal(t, agent.TokenEvent(tok), events[i])
	}
	assert.Equal(t, agent.DoneEvent(), events[len(events)-1])

	streams := provider.Streams()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].Closed())
}

func TestAgent_Stream_ResearchFailureSurfacesOnRecv(t *testing.T) {
	a := New(mocks.NewMockProvider().WithError(types.NewTimeoutError("")), Config{}, zap.NewNop())

	stream, err := a.Stream(context.Background(), agent.Input{Query: "q"})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTimeout))

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF, "stream is finished after a failure")
}

func TestAgent_Stream_MidStreamFailure(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithResponses("notes").
		WithStreamChunks("a", "b").
		WithStreamError(errors.New("connection reset by peer"))
	a := New(provider, Config{}, zap.NewNop())

	stream, err := a.Stream(context.Background(), agent.Input{Query: "q"})
	require.NoError(t, err)
	defer stream.Close()

	events, err := drain(t, stream)
	require.Error(t, err)
	assert.Len(t, events, 2)
	assert.Contains(t, err.Error(), "summary step")
}

func TestAgent_Stream_EmptyQuery(t *testing.T) {
	a := New(mocks.NewMockProvider(), Config{}, zap.NewNop())
	_, err := a.Stream(context.Background(), agent.Input{Query: " "})
	assert.True(t, types.IsKind(err, types.KindValidation))
}

func TestAgent_Name(t *testing.T) {
	assert.Equal(t, "research_agent", New(mocks.NewMockProvider(), Config{}, nil).Name())
}
