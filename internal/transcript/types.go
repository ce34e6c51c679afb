package transcript

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/namikmesic/chatstream/internal/stream"
)

type ToolStatus string

const (
	ToolCalling ToolStatus = "calling"
	ToolDone    ToolStatus = "done"
	ToolError   ToolStatus = "error"
)

type AgentStatus string

const (
	AgentRunning AgentStatus = "running"
	AgentDone    AgentStatus = "done"
	AgentError   AgentStatus = "error"
)

type ThinkingStatus string

const (
	Thinking     ThinkingStatus = "thinking"
	ThinkingDone ThinkingStatus = "done"
)

// ToolCall is one tool invocation, keyed by the server-issued id.
type ToolCall struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Status ToolStatus      `json:"status"`
}

// AgentExecution is one delegated sub-agent run with its own tool ledger.
type AgentExecution struct {
	AgentName     string        `json:"agentName"`
	Label         string        `json:"label,omitempty"`
	Task          string        `json:"task,omitempty"`
	Status        AgentStatus   `json:"status"`
	ToolCalls     []ToolCall    `json:"toolCalls"`
	Tokens        string        `json:"tokens,omitempty"`
	ResultSummary string        `json:"resultSummary,omitempty"`
	Usage         *stream.Usage `json:"usage,omitempty"`
	DurationMs    *int64        `json:"durationMs,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// ThinkingSegment is a block of model reasoning streamed before the reply.
type ThinkingSegment struct {
	Content    string         `json:"content"`
	Status     ThinkingStatus `json:"status"`
	Type       string         `json:"type,omitempty"`
	Effort     string         `json:"effort,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	DurationMs *int64         `json:"durationMs,omitempty"`
}

// State is the transcript of one in-flight assistant turn. Values are
// treated as immutable: the reducer copies any slice or pointer it changes.
type State struct {
	Text            string            `json:"text"`
	ToolCalls       []ToolCall        `json:"toolCalls"`
	AgentExecutions []AgentExecution  `json:"agentExecutions"`
	Thinking        *ThinkingSegment  `json:"thinking,omitempty"`
	ThinkingHistory []ThinkingSegment `json:"thinkingHistory,omitempty"`
	Usage           *stream.Usage     `json:"usage,omitempty"`
}

// HasContent reports whether the turn produced anything worth keeping.
func (s State) HasContent() bool {
	return s.Text != "" || len(s.ToolCalls) > 0
}

// Clone returns a deep copy sharing no memory with s.
func (s State) Clone() State {
	out := s
	out.ToolCalls = cloneTools(s.ToolCalls)
	if s.AgentExecutions != nil {
		out.AgentExecutions = make([]AgentExecution, len(s.AgentExecutions))
		for i, ex := range s.AgentExecutions {
			ex.ToolCalls = cloneTools(ex.ToolCalls)
			ex.Usage = clonePtr(ex.Usage)
			ex.DurationMs = clonePtr(ex.DurationMs)
			out.AgentExecutions[i] = ex
		}
	}
	if s.Thinking != nil {
		th := *s.Thinking
		th.DurationMs = clonePtr(th.DurationMs)
		out.Thinking = &th
	}
	if s.ThinkingHistory != nil {
		out.ThinkingHistory = make([]ThinkingSegment, len(s.ThinkingHistory))
		for i, th := range s.ThinkingHistory {
			th.DurationMs = clonePtr(th.DurationMs)
			out.ThinkingHistory[i] = th
		}
	}
	out.Usage = clonePtr(s.Usage)
	return out
}

func cloneTools(in []ToolCall) []ToolCall {
	if in == nil {
		return nil
	}
	out := make([]ToolCall, len(in))
	for i, tc := range in {
		tc.Input = slices.Clone(tc.Input)
		tc.Result = slices.Clone(tc.Result)
		out[i] = tc
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
