package transcript

import (
	"slices"
	"time"

	"github.com/namikmesic/chatstream/internal/stream"
)

// Reducer folds normalized actions into a State. Now supplies timestamps for
// thinking durations; nil means the wall clock.
type Reducer struct {
	Now func() time.Time
}

// Reduce applies a to s using the wall clock.
func Reduce(s State, a stream.Action) State {
	return Reducer{}.Apply(s, a)
}

// Apply returns the state after a. The input state is never modified; any
// slice that changes is copied first. Every action is valid in every state.
func (r Reducer) Apply(s State, a stream.Action) State {
	switch a := a.(type) {
	case stream.TokenAppend:
		s.Text += a.Token

	case stream.ThinkingStart:
		if s.Thinking != nil {
			s.ThinkingHistory = append(slices.Clip(s.ThinkingHistory), *r.closeThinking(s.Thinking))
		}
		s.Thinking = &ThinkingSegment{
			Status:    Thinking,
			Type:      a.Type,
			Effort:    a.Effort,
			StartedAt: r.now(),
		}

	case stream.ThinkingToken:
		if s.Thinking == nil || s.Thinking.Status != Thinking {
			return s
		}
		th := *s.Thinking
		th.Content += a.Token
		s.Thinking = &th

	case stream.ThinkingEnd:
		s.Thinking = r.closeThinking(s.Thinking)

	case stream.ToolStart:
		s.ToolCalls = append(slices.Clip(s.ToolCalls), ToolCall{
			ID:     a.ID,
			Name:   a.Name,
			Input:  a.Input,
			Status: ToolCalling,
		})

	case stream.ToolDone:
		s.ToolCalls = finishTool(s.ToolCalls, a.ID, a.Result, a.IsError)

	case stream.AgentStart:
		s.AgentExecutions = append(slices.Clip(s.AgentExecutions), AgentExecution{
			AgentName: a.AgentName,
			Label:     a.Label,
			Task:      a.Task,
			Status:    AgentRunning,
			ToolCalls: []ToolCall{},
		})

	case stream.AgentToken:
		s.AgentExecutions = updateRunning(s.AgentExecutions, a.AgentName, func(ex *AgentExecution) {
			ex.Tokens += a.Token
		})

	case stream.AgentToolStart:
		s.AgentExecutions = updateRunning(s.AgentExecutions, a.AgentName, func(ex *AgentExecution) {
			ex.ToolCalls = append(slices.Clip(ex.ToolCalls), ToolCall{
				ID:     a.ID,
				Name:   a.Name,
				Input:  a.Input,
				Status: ToolCalling,
			})
		})

	case stream.AgentToolDone:
		s.AgentExecutions = updateRunning(s.AgentExecutions, a.AgentName, func(ex *AgentExecution) {
			ex.ToolCalls = finishTool(ex.ToolCalls, a.ID, a.Result, a.IsError)
		})

	case stream.AgentEnd:
		s.AgentExecutions = updateRunning(s.AgentExecutions, a.AgentName, func(ex *AgentExecution) {
			ex.Status = AgentDone
			if a.Error != "" {
				ex.Status = AgentError
				ex.Error = a.Error
			}
			ex.ResultSummary = a.ResultSummary
			ex.Usage = a.Usage
			ex.DurationMs = a.DurationMs
		})
		s.ToolCalls = finishAgentTool(s.ToolCalls, a.AgentName, a.Error != "")

	case stream.UsageReport:
		u := a.Usage
		s.Usage = &u

	case stream.MessageEnd, stream.StreamError:
		s.Thinking = r.closeThinking(s.Thinking)
	}
	return s
}

func (r Reducer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// closeThinking returns a done copy of an open segment, or th unchanged.
func (r Reducer) closeThinking(th *ThinkingSegment) *ThinkingSegment {
	if th == nil || th.Status != Thinking {
		return th
	}
	out := *th
	out.Status = ThinkingDone
	elapsed := max(r.now().Sub(th.StartedAt).Milliseconds(), 0)
	out.DurationMs = &elapsed
	return &out
}

// finishTool transitions the calling tool with the given id. Unknown ids and
// tools already in a terminal state leave the ledger untouched.
func finishTool(calls []ToolCall, id string, result []byte, isError bool) []ToolCall {
	i := slices.IndexFunc(calls, func(tc ToolCall) bool { return tc.ID == id })
	if i < 0 || calls[i].Status != ToolCalling {
		return calls
	}
	out := slices.Clone(calls)
	out[i].Result = result
	out[i].Status = ToolDone
	if isError {
		out[i].Status = ToolError
	}
	return out
}

// finishAgentTool closes the top-level tool call that stands for an agent
// invocation, when the backend reports the agent as a tool as well.
func finishAgentTool(calls []ToolCall, agentName string, isError bool) []ToolCall {
	i := slices.IndexFunc(calls, func(tc ToolCall) bool {
		return tc.Name == agentName && tc.Status == ToolCalling
	})
	if i < 0 {
		return calls
	}
	out := slices.Clone(calls)
	out[i].Status = ToolDone
	if isError {
		out[i].Status = ToolError
	}
	return out
}

// updateRunning applies fn to a copy of the first running execution named
// name. Same-named concurrent executions are not distinguished.
func updateRunning(execs []AgentExecution, name string, fn func(*AgentExecution)) []AgentExecution {
	i := slices.IndexFunc(execs, func(ex AgentExecution) bool {
		return ex.AgentName == name && ex.Status == AgentRunning
	})
	if i < 0 {
		return execs
	}
	out := slices.Clone(execs)
	fn(&out[i])
	return out
}
