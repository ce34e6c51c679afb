package jetstream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namikmesic/chatstream/internal/store"
	"github.com/namikmesic/chatstream/internal/transcript"
)

func TestEntrySubject(t *testing.T) {
	assert.Equal(t, "chatstream.conv.c1.entry.e1", EntrySubject("c1", "e1"))
	assert.Equal(t, "chatstream.conv.a_b_c.entry.x_y", EntrySubject("a.b c", "x>y"))
	assert.Equal(t, "chatstream.conv._.entry._", EntrySubject("", ""))
	assert.Equal(t, "chatstream.conv.c1.entry.*", ConversationSubjects("c1"))
}

func TestPublisher_LatestSnapshotPerEntry(t *testing.T) {
	srv, err := NewServer(t.TempDir())
	require.NoError(t, err)
	defer srv.Shutdown()

	nc, err := srv.Connect()
	require.NoError(t, err)
	defer nc.Close()

	js, err := nc.JetStream()
	require.NoError(t, err)
	require.NoError(t, EnsureStream(js))
	require.NoError(t, EnsureStream(js), "second call tolerates an existing stream")

	mem := store.NewMemory()
	pub := NewPublisher(js)
	mem.Subscribe(pub.Observe)

	mem.Put(transcript.Entry{ID: "a1", ConversationID: "c1", Role: transcript.RoleAssistant, State: &transcript.State{Text: "He"}})
	mem.Put(transcript.Entry{ID: "a1", ConversationID: "c1", Role: transcript.RoleAssistant, State: &transcript.State{Text: "Hello"}})
	mem.Put(transcript.Entry{ID: "u2", ConversationID: "c1", Role: transcript.RoleUser, Content: "bye"})
	mem.Delete("u2")

	select {
	case <-pub.Flush():
	case <-time.After(5 * time.Second):
		t.Fatal("publishes not acknowledged")
	}

	msg, err := js.GetLastMsg(StreamName, EntrySubject("c1", "a1"))
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.False(t, snap.Deleted)
	assert.Equal(t, "Hello", snap.Entry.Text())

	msg, err = js.GetLastMsg(StreamName, EntrySubject("c1", "u2"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.True(t, snap.Deleted)

	info, err := js.StreamInfo(StreamName)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.State.Msgs)
}
