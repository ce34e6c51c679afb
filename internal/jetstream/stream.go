package jetstream

import (
	"errors"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "CHATSTREAM"
	SubjectPrefix = "chatstream.conv."
)

// EnsureStream creates the snapshot stream. Only the latest message per
// subject is kept, so each entry subject holds its newest snapshot.
func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{SubjectPrefix + ">"},
		Storage:           nats.FileStorage,
		MaxAge:            24 * time.Hour,
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// EntrySubject is the subject carrying snapshots of one transcript entry.
func EntrySubject(conversationID, entryID string) string {
	return SubjectPrefix + token(conversationID) + ".entry." + token(entryID)
}

// ConversationSubjects matches every entry subject of a conversation.
func ConversationSubjects(conversationID string) string {
	return SubjectPrefix + token(conversationID) + ".entry.*"
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
