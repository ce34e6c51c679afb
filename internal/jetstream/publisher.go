package jetstream

import (
	"encoding/json"

	"github.com/namikmesic/chatstream/internal/transcript"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Snapshot is the message published for every transcript change.
type Snapshot struct {
	Entry   transcript.Entry `json:"entry"`
	Deleted bool             `json:"deleted"`
}

// Publisher mirrors transcript store changes onto JetStream.
type Publisher struct {
	js nats.JetStreamContext
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

// Observe has the shape of a store observer. Publishing is asynchronous so
// the fold loop never waits on an ack.
func (p *Publisher) Observe(e transcript.Entry, deleted bool) {
	data, err := json.Marshal(Snapshot{Entry: e, Deleted: deleted})
	if err != nil {
		log.Error().Err(err).Str("entry_id", e.ID).Msg("failed to encode snapshot")
		return
	}
	if _, err := p.js.PublishAsync(EntrySubject(e.ConversationID, e.ID), data); err != nil {
		log.Warn().Err(err).Str("entry_id", e.ID).Msg("failed to publish snapshot")
	}
}

// Flush returns a channel closed once every pending publish is acknowledged.
func (p *Publisher) Flush() <-chan struct{} {
	return p.js.PublishAsyncComplete()
}
