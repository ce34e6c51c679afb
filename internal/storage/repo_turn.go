package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TurnRecord is one finalized transcript entry as archived.
type TurnRecord struct {
	ID                  uuid.UUID
	ConversationID      string
	Timestamp           time.Time
	Role                string
	Content             string
	StateJSON           json.RawMessage
	Interrupted         bool
	ErrorMessage        string
	ToolCalls           int
	AgentExecutions     int
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	TotalTokens         int
	CostUSD             float64
}

// InsertTurnJob upserts a turn; a later write for the same id replaces the earlier one.
func InsertTurnJob(r *TurnRecord) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		_, err := db.Exec(ctx, `
			INSERT INTO chat_turns (
				id, conversation_id, ts, role, content, state_json, interrupted, error_message,
				tool_calls, agent_executions, model, input_tokens, output_tokens,
				cache_read_tokens, cache_creation_tokens, total_tokens, cost_usd
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				state_json = EXCLUDED.state_json,
				interrupted = EXCLUDED.interrupted,
				error_message = EXCLUDED.error_message,
				tool_calls = EXCLUDED.tool_calls,
				agent_executions = EXCLUDED.agent_executions,
				model = EXCLUDED.model,
				input_tokens = EXCLUDED.input_tokens,
				output_tokens = EXCLUDED.output_tokens,
				cache_read_tokens = EXCLUDED.cache_read_tokens,
				cache_creation_tokens = EXCLUDED.cache_creation_tokens,
				total_tokens = EXCLUDED.total_tokens,
				cost_usd = EXCLUDED.cost_usd`,
			r.ID, r.ConversationID, r.Timestamp, r.Role, r.Content, nilIfEmptyBytes(r.StateJSON),
			r.Interrupted, nilIfEmpty(r.ErrorMessage),
			r.ToolCalls, r.AgentExecutions, nilIfEmpty(r.Model), r.InputTokens, r.OutputTokens,
			r.CacheReadTokens, r.CacheCreationTokens, r.TotalTokens, r.CostUSD,
		)
		return err
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfEmptyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
