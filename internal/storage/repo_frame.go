package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/namikmesic/chatstream/internal/stream"
)

var frameColumns = []string{"ts", "turn_id", "frame_index", "event_type", "data_json", "raw_bytes"}

// InsertFramesJob creates a batch insert job for a turn's raw frames using COPY protocol.
func InsertFramesJob(turnID uuid.UUID, ts time.Time, frames []stream.Frame) WriteJob {
	return WriteJobFunc(func(ctx context.Context, db DB) error {
		rows := make([][]any, len(frames))
		for i, f := range frames {
			rows[i] = []any{
				ts,
				turnID,
				f.Index,
				stream.TypeOf(f.Data),
				f.Data,
				f.RawBytes,
			}
		}

		_, err := db.CopyFrom(ctx,
			pgx.Identifier{"chat_frames"},
			frameColumns,
			pgx.CopyFromRows(rows),
		)
		return err
	})
}
