package chat

import (
	"context"
	"io"

	"github.com/namikmesic/chatstream/internal/transcript"
)

// Message is one role/content pair of the outgoing history.
type Message struct {
	Role    transcript.Role `json:"role"`
	Content string          `json:"content"`
}

// Request is the payload sent to the chat backend for one turn.
type Request struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []Message      `json:"messages"`
	Context        map[string]any `json:"context,omitempty"`
}

// TurnInput is what the caller submits for a new turn.
type TurnInput struct {
	ConversationID string
	Message        string
	Context        map[string]any
}

// Opener starts a streaming request and returns the response body. The body
// must stop producing data once ctx is cancelled.
type Opener interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// OpenerFunc adapts a function into an Opener.
type OpenerFunc func(ctx context.Context, req Request) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	return f(ctx, req)
}

// Store is the transcript store the controller commits snapshots to.
// Put is last-write-wins by entry id.
type Store interface {
	Put(e transcript.Entry)
	Delete(id string)
	Entries(conversationID string) []transcript.Entry
}

// buildHistory returns the finalized, successful messages of a conversation
// followed by the new user message.
func buildHistory(entries []transcript.Entry, message string) []Message {
	msgs := make([]Message, 0, len(entries)+1)
	for _, e := range entries {
		if !e.Final || e.Error != "" {
			continue
		}
		text := e.Text()
		if text == "" {
			continue
		}
		msgs = append(msgs, Message{Role: e.Role, Content: text})
	}
	return append(msgs, Message{Role: transcript.RoleUser, Content: message})
}
