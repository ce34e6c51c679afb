package stream

import "encoding/json"

// Event type discriminators sent by the chat backend.
const (
	TypeToken              = "token"
	TypeThinkingStart      = "thinking_start"
	TypeThinkingToken      = "thinking_token"
	TypeThinkingEnd        = "thinking_end"
	TypeToolUseStart       = "tool_use_start"
	TypeToolUseResult      = "tool_use_result"
	TypeAgentStart         = "agent_start"
	TypeAgentToken         = "agent_token"
	TypeAgentToolUseStart  = "agent_tool_use_start"
	TypeAgentToolUseResult = "agent_tool_use_result"
	TypeAgentEnd           = "agent_end"
	TypeUsageReport        = "usage_report"
	TypeMessageEnd         = "message_end"
	TypeError              = "error"
)

// wireEvent is the union of every field any event type carries. Fields a
// given type does not use are left at their zero value.
type wireEvent struct {
	Type string `json:"type"`

	Token string `json:"token"`

	ThinkingType string `json:"thinking_type"`
	Effort       string `json:"effort"`

	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input"`
	Result     json.RawMessage `json:"result"`
	IsError    bool            `json:"is_error"`

	AgentName     string     `json:"agent_name"`
	Label         string     `json:"label"`
	Task          string     `json:"task"`
	ResultSummary string     `json:"result_summary"`
	DurationMs    *int64     `json:"duration_ms"`
	Usage         *wireUsage `json:"usage"`

	Message string `json:"message"`
	Error   string `json:"error"`
}

// wireUsage is the token accounting object carried by usage_report and agent_end.
type wireUsage struct {
	Model               string  `json:"model"`
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	CostUSD             float64 `json:"cost_usd"`
}

// Usage is normalized token accounting for a turn or an agent execution.
type Usage struct {
	Model               string  `json:"model,omitempty"`
	InputTokens         int     `json:"inputTokens"`
	OutputTokens        int     `json:"outputTokens"`
	CacheReadTokens     int     `json:"cacheReadTokens"`
	CacheCreationTokens int     `json:"cacheCreationTokens"`
	TotalTokens         int     `json:"totalTokens"`
	CostUSD             float64 `json:"costUsd,omitempty"`
}

func (u *wireUsage) normalize() *Usage {
	if u == nil {
		return nil
	}
	total := u.TotalTokens
	if total <= 0 {
		total = u.InputTokens + u.OutputTokens + u.CacheReadTokens + u.CacheCreationTokens
	}
	return &Usage{
		Model:               u.Model,
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheReadTokens:     u.CacheReadTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		TotalTokens:         total,
		CostUSD:             u.CostUSD,
	}
}
