package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/namikmesic/chatstream/internal/chat"
	"github.com/namikmesic/chatstream/internal/transcript"
)

// EntryLister is the read side of the transcript store.
type EntryLister interface {
	Entries(conversationID string) []transcript.Entry
	Conversations() []string
}

// ControllerFactory builds the controller for a new conversation.
type ControllerFactory func(conversationID string) *chat.Controller

type session struct {
	ctrl   *chat.Controller
	active bool
	cancel context.CancelFunc
}

// Server exposes submit, cancel and snapshot reads to a UI layer. Each
// conversation gets its own controller; at most one turn streams per
// conversation.
type Server struct {
	entries    EntryLister
	newSession ControllerFactory
	baseCtx    context.Context
	router     chi.Router

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

type submitRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

type conversationResponse struct {
	ID      string             `json:"id"`
	Status  chat.Status        `json:"status"`
	Error   string             `json:"error,omitempty"`
	Entries []transcript.Entry `json:"entries"`
}

// NewServer builds the router. Turns started through the API run under
// baseCtx, so cancelling it aborts them.
func NewServer(baseCtx context.Context, entries EntryLister, factory ControllerFactory) *Server {
	srv := &Server{
		entries:    entries,
		newSession: factory,
		baseCtx:    baseCtx,
		sessions:   make(map[string]*session),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Get("/conversations", srv.handleListConversations)
		r.Get("/conversations/{id}", srv.handleGetConversation)
		r.Post("/conversations/{id}/messages", srv.handleSubmit)
		r.Post("/conversations/{id}/cancel", srv.handleCancel)
	})

	srv.router = r
	return srv
}

func (s *Server) Handler() http.Handler { return s.router }

// Wait blocks until every background turn has returned.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	streaming := 0
	for _, sess := range s.sessions {
		if sess.active {
			streaming++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "chatstream",
		"streaming": streaming,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"conversations": s.entries.Conversations()})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp := conversationResponse{
		ID:      id,
		Status:  chat.StatusIdle,
		Entries: s.entries.Entries(id),
	}
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess != nil {
		resp.Status, resp.Error = sess.ctrl.Status()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{ctrl: s.newSession(id)}
		s.sessions[id] = sess
	}
	if sess.active {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a reply is still streaming"})
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	sess.active = true
	sess.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	in := chat.TurnInput{ConversationID: id, Message: req.Message, Context: req.Context}
	go s.run(ctx, sess, in)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(chat.StatusStreaming)})
}

func (s *Server) run(ctx context.Context, sess *session, in chat.TurnInput) {
	defer s.wg.Done()

	outcome, err := sess.ctrl.Submit(ctx, in)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("turn failed")
	} else {
		log.Info().Str("conversation_id", in.ConversationID).Str("outcome", string(outcome)).Msg("turn finished")
	}

	s.mu.Lock()
	sess.active = false
	sess.cancel()
	sess.cancel = nil
	s.mu.Unlock()
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	sess := s.sessions[id]
	var cancel context.CancelFunc
	if sess != nil {
		cancel = sess.cancel
	}
	s.mu.Unlock()
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown conversation"})
		return
	}

	// The turn context exists from the moment the submit is accepted.
	if cancel != nil {
		cancel()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
