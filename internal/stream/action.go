package stream

import "encoding/json"

// Action is a normalized stream event. The set of implementations is closed:
// only this package can add one.
type Action interface {
	// Kind returns the wire type the action was decoded from.
	Kind() string
	action()
}

// TokenAppend appends text to the assistant reply.
type TokenAppend struct {
	Token string
}

// ThinkingStart opens a new thinking segment.
type ThinkingStart struct {
	Type   string
	Effort string
}

// ThinkingToken appends to the open thinking segment.
type ThinkingToken struct {
	Token string
}

// ThinkingEnd closes the open thinking segment.
type ThinkingEnd struct{}

// ToolStart records a top-level tool invocation.
type ToolStart struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolDone completes a top-level tool invocation.
type ToolDone struct {
	ID      string
	Result  json.RawMessage
	IsError bool
}

// AgentStart begins a delegated sub-agent execution.
type AgentStart struct {
	AgentName string
	Label     string
	Task      string
}

// AgentToken appends streamed output to a running agent.
type AgentToken struct {
	AgentName string
	Token     string
}

// AgentToolStart records a tool invocation made by a running agent.
type AgentToolStart struct {
	AgentName string
	ID        string
	Name      string
	Input     json.RawMessage
}

// AgentToolDone completes a tool invocation made by a running agent.
type AgentToolDone struct {
	AgentName string
	ID        string
	Result    json.RawMessage
	IsError   bool
}

// AgentEnd finalizes a running agent.
type AgentEnd struct {
	AgentName     string
	ResultSummary string
	Usage         *Usage
	DurationMs    *int64
	Error         string
}

// UsageReport carries the turn-level token accounting.
type UsageReport struct {
	Usage Usage
}

// MessageEnd marks the end of the assistant turn.
type MessageEnd struct{}

// StreamError is an error reported by the server mid-stream.
type StreamError struct {
	Message string
}

func (TokenAppend) Kind() string    { return TypeToken }
func (ThinkingStart) Kind() string  { return TypeThinkingStart }
func (ThinkingToken) Kind() string  { return TypeThinkingToken }
func (ThinkingEnd) Kind() string    { return TypeThinkingEnd }
func (ToolStart) Kind() string      { return TypeToolUseStart }
func (ToolDone) Kind() string       { return TypeToolUseResult }
func (AgentStart) Kind() string     { return TypeAgentStart }
func (AgentToken) Kind() string     { return TypeAgentToken }
func (AgentToolStart) Kind() string { return TypeAgentToolUseStart }
func (AgentToolDone) Kind() string  { return TypeAgentToolUseResult }
func (AgentEnd) Kind() string       { return TypeAgentEnd }
func (UsageReport) Kind() string    { return TypeUsageReport }
func (MessageEnd) Kind() string     { return TypeMessageEnd }
func (StreamError) Kind() string    { return TypeError }

func (TokenAppend) action()    {}
func (ThinkingStart) action()  {}
func (ThinkingToken) action()  {}
func (ThinkingEnd) action()    {}
func (ToolStart) action()      {}
func (ToolDone) action()       {}
func (AgentStart) action()     {}
func (AgentToken) action()     {}
func (AgentToolStart) action() {}
func (AgentToolDone) action()  {}
func (AgentEnd) action()       {}
func (UsageReport) action()    {}
func (MessageEnd) action()     {}
func (StreamError) action()    {}

// Terminal reports whether the action ends the turn.
func Terminal(a Action) bool {
	switch a.(type) {
	case MessageEnd, StreamError:
		return true
	}
	return false
}
