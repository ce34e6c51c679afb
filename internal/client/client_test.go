package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namikmesic/chatstream/internal/chat"
	"github.com/namikmesic/chatstream/internal/store"
	"github.com/namikmesic/chatstream/internal/transcript"
)

func TestBuildTargetURL(t *testing.T) {
	got, err := buildTargetURL("http://localhost:8000/", "/api/chat/stream")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/chat/stream", got)

	got, err = buildTargetURL("https://example.com/v1", "chat")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v1/chat", got)

	_, err = buildTargetURL("localhost", "/chat")
	assert.Error(t, err)
}

func TestRequestHeaders(t *testing.T) {
	extra := http.Header{}
	extra.Set("X-Locale", "de")
	extra.Set("Accept-Encoding", "gzip")

	h := requestHeaders(extra)
	assert.Equal(t, "de", h.Get("X-Locale"))
	assert.Equal(t, "text/event-stream", h.Get("Accept"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Empty(t, h.Get("Accept-Encoding"))
}

func TestOpen_StreamsBody(t *testing.T) {
	var got chat.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"token\",\"token\":\"hi\"}\n\n")
	}))
	defer srv.Close()

	c, err := New(srv.URL, "/api/chat/stream", WithHeader("X-Test", "yes"))
	require.NoError(t, err)

	body, err := c.Open(context.Background(), chat.Request{
		ConversationID: "c1",
		Messages:       []chat.Message{{Role: transcript.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"token\",\"token\":\"hi\"}\n\n", string(raw))
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestOpen_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "/chat")
	require.NoError(t, err)

	_, err = c.Open(context.Background(), chat.Request{})
	var te *chat.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, "maintenance", te.Body)
}

func TestOpen_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "/chat")
	require.NoError(t, err)

	_, err = c.Open(context.Background(), chat.Request{})
	var te *chat.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusFound, te.StatusCode)
}

func TestOpen_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "/chat")
	require.NoError(t, err)

	_, err = c.Open(context.Background(), chat.Request{})
	var te *chat.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestClient_DrivesController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"type":"agent_start","agent_name":"eligibility","task":"check"}`,
			`{"type":"agent_token","agent_name":"eligibility","token":"ok"}`,
			`{"type":"agent_end","agent_name":"eligibility","result_summary":"eligible"}`,
			`{"type":"token","token":"You qualify."}`,
			`{"type":"message_end"}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "/chat")
	require.NoError(t, err)
	s := store.NewMemory()

	outcome, err := chat.New(c, s).Submit(context.Background(), chat.TurnInput{ConversationID: "c1", Message: "am I eligible?"})
	require.NoError(t, err)
	assert.Equal(t, chat.OutcomeCompleted, outcome)

	entries := s.Entries("c1")
	require.Len(t, entries, 2)
	st := entries[1].State
	require.NotNil(t, st)
	assert.Equal(t, "You qualify.", st.Text)
	require.Len(t, st.AgentExecutions, 1)
	assert.Equal(t, transcript.AgentDone, st.AgentExecutions[0].Status)
	assert.Equal(t, "eligible", st.AgentExecutions[0].ResultSummary)
}
