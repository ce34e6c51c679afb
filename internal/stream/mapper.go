package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const defaultErrorMessage = "stream error"

// Map translates one record into a normalized action. It returns false for
// invalid JSON, an unknown type, or a record missing a field its type
// requires; the caller skips the record and keeps reading.
func Map(data string) (Action, bool) {
	var ev wireEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, false
	}

	switch ev.Type {
	case TypeToken:
		if ev.Token == "" {
			return nil, false
		}
		return TokenAppend{Token: ev.Token}, true

	case TypeThinkingStart:
		return ThinkingStart{Type: ev.ThinkingType, Effort: ev.Effort}, true

	case TypeThinkingToken:
		if ev.Token == "" {
			return nil, false
		}
		return ThinkingToken{Token: ev.Token}, true

	case TypeThinkingEnd:
		return ThinkingEnd{}, true

	case TypeToolUseStart:
		if ev.ToolCallID == "" || ev.ToolName == "" {
			return nil, false
		}
		return ToolStart{ID: ev.ToolCallID, Name: ev.ToolName, Input: rawOrNil(ev.Input)}, true

	case TypeToolUseResult:
		if ev.ToolCallID == "" {
			return nil, false
		}
		return ToolDone{ID: ev.ToolCallID, Result: rawOrNil(ev.Result), IsError: ev.IsError}, true

	case TypeAgentStart:
		if ev.AgentName == "" {
			return nil, false
		}
		return AgentStart{AgentName: ev.AgentName, Label: ev.Label, Task: ev.Task}, true

	case TypeAgentToken:
		if ev.AgentName == "" || ev.Token == "" {
			return nil, false
		}
		return AgentToken{AgentName: ev.AgentName, Token: ev.Token}, true

	case TypeAgentToolUseStart:
		if ev.AgentName == "" || ev.ToolCallID == "" || ev.ToolName == "" {
			return nil, false
		}
		return AgentToolStart{
			AgentName: ev.AgentName,
			ID:        ev.ToolCallID,
			Name:      ev.ToolName,
			Input:     rawOrNil(ev.Input),
		}, true

	case TypeAgentToolUseResult:
		if ev.AgentName == "" || ev.ToolCallID == "" {
			return nil, false
		}
		return AgentToolDone{
			AgentName: ev.AgentName,
			ID:        ev.ToolCallID,
			Result:    rawOrNil(ev.Result),
			IsError:   ev.IsError,
		}, true

	case TypeAgentEnd:
		if ev.AgentName == "" {
			return nil, false
		}
		return AgentEnd{
			AgentName:     ev.AgentName,
			ResultSummary: ev.ResultSummary,
			Usage:         ev.Usage.normalize(),
			DurationMs:    ev.DurationMs,
			Error:         ev.Error,
		}, true

	case TypeUsageReport:
		if ev.Usage == nil {
			return nil, false
		}
		return UsageReport{Usage: *ev.Usage.normalize()}, true

	case TypeMessageEnd:
		return MessageEnd{}, true

	case TypeError:
		msg := ev.Message
		if msg == "" {
			msg = ev.Error
		}
		if msg == "" {
			msg = defaultErrorMessage
		}
		return StreamError{Message: msg}, true
	}

	return nil, false
}

// MapFrame maps the payload of a decoded frame.
func MapFrame(f Frame) (Action, bool) {
	return Map(f.Data)
}

// TypeOf extracts the "type" field from JSON data without full parsing.
func TypeOf(data string) string {
	idx := strings.Index(data, `"type"`)
	if idx == -1 {
		return "unknown"
	}

	rest := data[idx+6:]
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, ":") {
		return "unknown"
	}
	rest = strings.TrimLeft(rest[1:], " \t")

	if len(rest) > 0 && rest[0] == '"' {
		end := strings.IndexByte(rest[1:], '"')
		if end >= 0 {
			return rest[1 : end+1]
		}
	}
	return "unknown"
}

func rawOrNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
