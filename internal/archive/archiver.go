package archive

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/chatstream/internal/storage"
	"github.com/namikmesic/chatstream/internal/stream"
	"github.com/namikmesic/chatstream/internal/transcript"
	"github.com/rs/zerolog/log"
)

// Enqueuer is satisfied by *storage.BatchWriter.
type Enqueuer interface {
	Enqueue(job storage.WriteJob)
}

// Archiver turns finalized turns and their raw frames into write jobs.
type Archiver struct {
	writer Enqueuer
	now    func() time.Time
}

func New(writer Enqueuer) *Archiver {
	return &Archiver{writer: writer, now: time.Now}
}

// RecordTurn archives a finalized entry. Entries whose id is not a UUID are
// skipped since the table is keyed by UUID.
func (a *Archiver) RecordTurn(e transcript.Entry) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		log.Warn().Str("entry_id", e.ID).Msg("skipping archive of entry without uuid")
		return
	}

	rec := &storage.TurnRecord{
		ID:             id,
		ConversationID: e.ConversationID,
		Timestamp:      e.CreatedAt,
		Role:           string(e.Role),
		Content:        e.Text(),
		Interrupted:    e.Interrupted,
		ErrorMessage:   e.Error,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.now()
	}

	if st := e.State; st != nil {
		raw, err := json.Marshal(st)
		if err != nil {
			log.Error().Err(err).Str("entry_id", e.ID).Msg("failed to encode turn state")
		} else {
			rec.StateJSON = raw
		}
		rec.ToolCalls = len(st.ToolCalls)
		rec.AgentExecutions = len(st.AgentExecutions)
		if u := st.Usage; u != nil {
			rec.Model = u.Model
			rec.InputTokens = u.InputTokens
			rec.OutputTokens = u.OutputTokens
			rec.CacheReadTokens = u.CacheReadTokens
			rec.CacheCreationTokens = u.CacheCreationTokens
			rec.TotalTokens = u.TotalTokens
			rec.CostUSD = u.CostUSD
		}
	}

	a.writer.Enqueue(storage.InsertTurnJob(rec))

	log.Debug().
		Str("entry_id", e.ID).
		Str("conversation_id", e.ConversationID).
		Str("role", string(e.Role)).
		Int("total_tokens", rec.TotalTokens).
		Msg("turn archived")
}

// RecordFrames archives the raw frames of a turn.
func (a *Archiver) RecordFrames(turnID uuid.UUID, frames []stream.Frame) {
	if len(frames) == 0 {
		return
	}
	a.writer.Enqueue(storage.InsertFramesJob(turnID, a.now(), frames))
}
