package transcript

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one message of a conversation as held by the transcript store.
// Assistant entries carry the turn State; Final is set once it is frozen.
type Entry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content,omitempty"`
	State          *State    `json:"state,omitempty"`
	Interrupted    bool      `json:"interrupted,omitempty"`
	Error          string    `json:"error,omitempty"`
	Final          bool      `json:"final"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Text returns the message text regardless of role.
func (e Entry) Text() string {
	if e.State != nil {
		return e.State.Text
	}
	return e.Content
}
