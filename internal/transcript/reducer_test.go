package transcript

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namikmesic/chatstream/internal/stream"
)

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func fold(r Reducer, actions ...stream.Action) State {
	var s State
	for _, a := range actions {
		s = r.Apply(s, a)
	}
	return s
}

func TestReduce_TokensAppend(t *testing.T) {
	s := fold(Reducer{}, stream.TokenAppend{Token: "Hel"}, stream.TokenAppend{Token: "lo"})
	assert.Equal(t, "Hello", s.Text)
}

func TestReduce_ToolLifecycle(t *testing.T) {
	s := fold(Reducer{},
		stream.ToolStart{ID: "t1", Name: "search"},
		stream.ToolDone{ID: "t1", Result: json.RawMessage(`{"found":true}`)},
	)

	require.Len(t, s.ToolCalls, 1)
	tc := s.ToolCalls[0]
	assert.Equal(t, "t1", tc.ID)
	assert.Equal(t, ToolDone, tc.Status)
	assert.JSONEq(t, `{"found":true}`, string(tc.Result))
}

func TestReduce_ToolErrorDoesNotRegress(t *testing.T) {
	s := fold(Reducer{},
		stream.ToolStart{ID: "t1", Name: "search"},
		stream.ToolDone{ID: "t1", IsError: true},
		stream.ToolDone{ID: "t1", Result: json.RawMessage(`1`)},
	)

	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, ToolError, s.ToolCalls[0].Status)
	assert.Nil(t, s.ToolCalls[0].Result)
}

func TestReduce_AgentLifecycle(t *testing.T) {
	s := fold(Reducer{},
		stream.AgentStart{AgentName: "a", Label: "Researcher", Task: "look up"},
		stream.AgentToken{AgentName: "a", Token: "x"},
		stream.AgentEnd{AgentName: "a", ResultSummary: "done"},
	)

	require.Len(t, s.AgentExecutions, 1)
	ex := s.AgentExecutions[0]
	assert.Equal(t, "a", ex.AgentName)
	assert.Equal(t, AgentDone, ex.Status)
	assert.Equal(t, "x", ex.Tokens)
	assert.Equal(t, "done", ex.ResultSummary)
}

func TestReduce_AgentToolsAreScoped(t *testing.T) {
	s := fold(Reducer{},
		stream.AgentStart{AgentName: "a"},
		stream.AgentToolStart{AgentName: "a", ID: "t9", Name: "fetch"},
		stream.AgentToolDone{AgentName: "a", ID: "t9", Result: json.RawMessage(`"page"`)},
	)

	assert.Empty(t, s.ToolCalls)
	require.Len(t, s.AgentExecutions, 1)
	require.Len(t, s.AgentExecutions[0].ToolCalls, 1)
	assert.Equal(t, ToolDone, s.AgentExecutions[0].ToolCalls[0].Status)
}

func TestReduce_AgentEndBridgesToolCall(t *testing.T) {
	usage := &stream.Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}
	dur := int64(40)
	s := fold(Reducer{},
		stream.ToolStart{ID: "t1", Name: "research"},
		stream.AgentStart{AgentName: "research"},
		stream.AgentEnd{AgentName: "research", Usage: usage, DurationMs: &dur},
	)

	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, ToolDone, s.ToolCalls[0].Status)
	assert.Equal(t, usage, s.AgentExecutions[0].Usage)
	assert.Equal(t, int64(40), *s.AgentExecutions[0].DurationMs)
}

func TestReduce_AgentEndWithError(t *testing.T) {
	s := fold(Reducer{},
		stream.ToolStart{ID: "t1", Name: "research"},
		stream.AgentStart{AgentName: "research"},
		stream.AgentEnd{AgentName: "research", Error: "quota"},
	)

	assert.Equal(t, AgentError, s.AgentExecutions[0].Status)
	assert.Equal(t, "quota", s.AgentExecutions[0].Error)
	assert.Equal(t, ToolError, s.ToolCalls[0].Status)
}

func TestReduce_SameNamedAgentsFirstMatchWins(t *testing.T) {
	s := fold(Reducer{},
		stream.AgentStart{AgentName: "a"},
		stream.AgentStart{AgentName: "a"},
		stream.AgentToken{AgentName: "a", Token: "1"},
		stream.AgentEnd{AgentName: "a"},
		stream.AgentToken{AgentName: "a", Token: "2"},
	)

	require.Len(t, s.AgentExecutions, 2)
	assert.Equal(t, AgentDone, s.AgentExecutions[0].Status)
	assert.Equal(t, "1", s.AgentExecutions[0].Tokens)
	assert.Equal(t, AgentRunning, s.AgentExecutions[1].Status)
	assert.Equal(t, "2", s.AgentExecutions[1].Tokens)
}

func TestReduce_ThinkingDuration(t *testing.T) {
	r := Reducer{Now: stepClock(250 * time.Millisecond)}
	s := fold(r,
		stream.ThinkingStart{Type: "extended", Effort: "low"},
		stream.ThinkingToken{Token: "con"},
		stream.ThinkingToken{Token: "sider"},
		stream.ThinkingEnd{},
	)

	require.NotNil(t, s.Thinking)
	assert.Equal(t, "consider", s.Thinking.Content)
	assert.Equal(t, ThinkingDone, s.Thinking.Status)
	assert.Equal(t, "extended", s.Thinking.Type)
	require.NotNil(t, s.Thinking.DurationMs)
	assert.Equal(t, int64(250), *s.Thinking.DurationMs)
}

func TestReduce_ThinkingRestartKeepsHistory(t *testing.T) {
	s := fold(Reducer{},
		stream.ThinkingStart{},
		stream.ThinkingToken{Token: "first"},
		stream.ThinkingEnd{},
		stream.ThinkingStart{},
		stream.ThinkingToken{Token: "second"},
	)

	require.Len(t, s.ThinkingHistory, 1)
	assert.Equal(t, "first", s.ThinkingHistory[0].Content)
	assert.Equal(t, ThinkingDone, s.ThinkingHistory[0].Status)
	assert.Equal(t, "second", s.Thinking.Content)
	assert.Equal(t, Thinking, s.Thinking.Status)
}

func TestReduce_ThinkingClosedOnMessageEnd(t *testing.T) {
	s := fold(Reducer{},
		stream.ThinkingStart{},
		stream.ThinkingToken{Token: "x"},
		stream.MessageEnd{},
	)
	require.NotNil(t, s.Thinking)
	assert.Equal(t, ThinkingDone, s.Thinking.Status)

	s = fold(Reducer{}, stream.ThinkingStart{}, stream.StreamError{Message: "boom"})
	assert.Equal(t, ThinkingDone, s.Thinking.Status)
}

func TestReduce_AgentEndBridgesToolWithoutAgentStart(t *testing.T) {
	s := fold(Reducer{},
		stream.ToolStart{ID: "t1", Name: "research"},
		stream.AgentEnd{AgentName: "research"},
	)
	require.Len(t, s.ToolCalls, 1)
	assert.Equal(t, ToolDone, s.ToolCalls[0].Status)
	assert.Empty(t, s.AgentExecutions)

	s = fold(Reducer{},
		stream.ToolStart{ID: "t1", Name: "research"},
		stream.AgentEnd{AgentName: "research", Error: "timeout"},
	)
	assert.Equal(t, ToolError, s.ToolCalls[0].Status)
}

func TestReduce_SupersededThinkingIsClosed(t *testing.T) {
	s := fold(Reducer{Now: stepClock(10 * time.Millisecond)},
		stream.ThinkingStart{},
		stream.ThinkingToken{Token: "first"},
		stream.ThinkingStart{},
		stream.MessageEnd{},
	)

	require.Len(t, s.ThinkingHistory, 1)
	assert.Equal(t, ThinkingDone, s.ThinkingHistory[0].Status)
	assert.Equal(t, "first", s.ThinkingHistory[0].Content)
	require.NotNil(t, s.ThinkingHistory[0].DurationMs)
	assert.Equal(t, int64(10), *s.ThinkingHistory[0].DurationMs)
	require.NotNil(t, s.Thinking)
	assert.Equal(t, ThinkingDone, s.Thinking.Status)
}

func TestReduce_NoOps(t *testing.T) {
	base := fold(Reducer{},
		stream.TokenAppend{Token: "hi"},
		stream.ToolStart{ID: "t1", Name: "search"},
		stream.AgentStart{AgentName: "a"},
		stream.AgentEnd{AgentName: "a"},
	)

	noops := []stream.Action{
		stream.ToolDone{ID: "missing"},
		stream.AgentToken{AgentName: "a", Token: "late"},
		stream.AgentToken{AgentName: "nobody", Token: "x"},
		stream.AgentToolStart{AgentName: "nobody", ID: "t2", Name: "x"},
		stream.AgentToolDone{AgentName: "a", ID: "t2"},
		stream.AgentEnd{AgentName: "nobody"},
		stream.ThinkingToken{Token: "x"},
		stream.ThinkingEnd{},
		stream.MessageEnd{},
	}
	for _, a := range noops {
		assert.Equal(t, base, Reduce(base, a), "action %T", a)
	}
}

func TestReduce_UsageLastWriteWins(t *testing.T) {
	s := fold(Reducer{},
		stream.UsageReport{Usage: stream.Usage{TotalTokens: 1}},
		stream.UsageReport{Usage: stream.Usage{TotalTokens: 9}},
	)
	require.NotNil(t, s.Usage)
	assert.Equal(t, 9, s.Usage.TotalTokens)
}

func TestState_HasContent(t *testing.T) {
	assert.False(t, State{}.HasContent())
	assert.False(t, fold(Reducer{}, stream.ThinkingStart{}, stream.AgentStart{AgentName: "a"}).HasContent())
	assert.True(t, State{Text: "x"}.HasContent())
	assert.True(t, fold(Reducer{}, stream.ToolStart{ID: "t", Name: "n"}).HasContent())
}

// actionCatalog spans every action kind over a small id space so random
// sequences hit matching and non-matching lookups alike.
var actionCatalog = []stream.Action{
	stream.TokenAppend{Token: "a"},
	stream.ThinkingStart{Type: "t"},
	stream.ThinkingToken{Token: "b"},
	stream.ThinkingEnd{},
	stream.ToolStart{ID: "t1", Name: "search", Input: json.RawMessage(`{}`)},
	stream.ToolStart{ID: "t2", Name: "agent"},
	stream.ToolDone{ID: "t1", Result: json.RawMessage(`true`)},
	stream.ToolDone{ID: "t2", IsError: true},
	stream.AgentStart{AgentName: "agent"},
	stream.AgentToken{AgentName: "agent", Token: "c"},
	stream.AgentToolStart{AgentName: "agent", ID: "t3", Name: "fetch"},
	stream.AgentToolDone{AgentName: "agent", ID: "t3"},
	stream.AgentEnd{AgentName: "agent", ResultSummary: "s"},
	stream.UsageReport{Usage: stream.Usage{TotalTokens: 4}},
	stream.MessageEnd{},
	stream.StreamError{Message: "e"},
}

func TestReduce_PurityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	r := Reducer{Now: stepClock(time.Millisecond)}

	properties.Property("apply never mutates its input", prop.ForAll(
		func(seq []int) bool {
			var s State
			for _, i := range seq {
				before := s.Clone()
				next := r.Apply(s, actionCatalog[i])
				if !assert.ObjectsAreEqual(before, s) {
					return false
				}
				s = next
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(actionCatalog)-1)),
	))

	properties.TestingRun(t)
}
