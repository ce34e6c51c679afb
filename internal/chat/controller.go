package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/namikmesic/chatstream/internal/stream"
	"github.com/namikmesic/chatstream/internal/transcript"
)

// DefaultInterruptionMarker is appended to partial text when a turn is cancelled.
const DefaultInterruptionMarker = "\n\n[interrupted]"

const defaultReadBufferSize = 32 * 1024

type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Outcome distinguishes how a turn ended. A cancelled turn is not an error.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// FrameRecorder receives the raw frames of a turn once the turn ends.
type FrameRecorder func(turnID uuid.UUID, frames []stream.Frame)

// TurnRecorder receives every entry the controller finalizes.
type TurnRecorder func(e transcript.Entry)

// Controller drives one conversation's streaming turns. It is not reentrant:
// callers must not Submit while a turn is streaming.
type Controller struct {
	opener         Opener
	store          Store
	reducer        transcript.Reducer
	marker         string
	readBufferSize int
	recordFrames   FrameRecorder
	recordTurn     TurnRecorder

	mu     sync.Mutex
	status Status
	errMsg string
	cancel context.CancelFunc
}

type Option func(*Controller)

func WithReducer(r transcript.Reducer) Option {
	return func(c *Controller) { c.reducer = r }
}

func WithInterruptionMarker(marker string) Option {
	return func(c *Controller) { c.marker = marker }
}

func WithReadBufferSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.readBufferSize = n
		}
	}
}

func WithFrameRecorder(fn FrameRecorder) Option {
	return func(c *Controller) { c.recordFrames = fn }
}

func WithTurnRecorder(fn TurnRecorder) Option {
	return func(c *Controller) { c.recordTurn = fn }
}

func New(opener Opener, store Store, opts ...Option) *Controller {
	c := &Controller{
		opener:         opener,
		store:          store,
		marker:         DefaultInterruptionMarker,
		readBufferSize: defaultReadBufferSize,
		status:         StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current status and the last error message.
func (c *Controller) Status() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.errMsg
}

// Cancel aborts the in-flight turn, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// turn is the mutable working set of one in-flight submission.
type turn struct {
	id     uuid.UUID
	entry  transcript.Entry
	state  transcript.State
	frames []stream.Frame
	start  time.Time
}

// Submit runs one turn to completion, committing a snapshot to the store
// after every applied action. It returns once the stream ends, fails, or
// is cancelled.
func (c *Controller) Submit(ctx context.Context, in TurnInput) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.status = StatusStreaming
	c.errMsg = ""
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	req := Request{
		ConversationID: in.ConversationID,
		Messages:       buildHistory(c.store.Entries(in.ConversationID), in.Message),
		Context:        in.Context,
	}

	now := time.Now()
	user := transcript.Entry{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		Role:           transcript.RoleUser,
		Content:        in.Message,
		Final:          true,
		CreatedAt:      now,
	}
	c.store.Put(user)

	body, err := c.opener.Open(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			c.finalized(user)
			c.setStatus(StatusIdle, "")
			return OutcomeCancelled, nil
		}
		// A failed open leaves the transcript as it was before the submit.
		c.store.Delete(user.ID)
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Err: err}
		}
		log.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("chat stream open failed")
		c.setStatus(StatusError, err.Error())
		return OutcomeFailed, err
	}
	defer body.Close()
	c.finalized(user)

	t := &turn{
		id:    uuid.New(),
		start: now,
	}
	t.entry = transcript.Entry{
		ID:             t.id.String(),
		ConversationID: in.ConversationID,
		Role:           transcript.RoleAssistant,
		CreatedAt:      now,
	}
	c.commit(t)

	outcome, err := c.fold(ctx, body, t)
	if c.recordFrames != nil && len(t.frames) > 0 {
		c.recordFrames(t.id, t.frames)
	}

	log.Debug().
		Str("conversation_id", in.ConversationID).
		Str("turn_id", t.entry.ID).
		Str("outcome", string(outcome)).
		Int("frames", len(t.frames)).
		Int("text_len", len(t.state.Text)).
		Int("tool_calls", len(t.state.ToolCalls)).
		Dur("duration", time.Since(t.start)).
		Msg("chat turn finished")
	return outcome, err
}

// fold reads the body until it ends, applying each mapped action in order.
func (c *Controller) fold(ctx context.Context, body io.Reader, t *turn) (Outcome, error) {
	dec := stream.NewDecoder()
	buf := make([]byte, c.readBufferSize)

	for {
		n, rerr := body.Read(buf)
		if ctx.Err() != nil {
			return c.abort(t), nil
		}

		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				t.frames = append(t.frames, f)
				action, ok := stream.MapFrame(f)
				if !ok {
					log.Debug().
						Str("turn_id", t.entry.ID).
						Int("index", f.Index).
						Str("type", stream.TypeOf(f.Data)).
						Msg("skipping unrecognized frame")
					continue
				}
				if ctx.Err() != nil {
					return c.abort(t), nil
				}

				t.state = c.reducer.Apply(t.state, action)
				c.commit(t)

				if se, ok := action.(stream.StreamError); ok {
					return c.failProtocol(t, se.Message)
				}
			}
		}

		if rerr != nil {
			if dropped := dec.Close(); dropped > 0 {
				log.Debug().Str("turn_id", t.entry.ID).Int("bytes", dropped).Msg("discarding unterminated trailing data")
			}
			if errors.Is(rerr, io.EOF) {
				t.entry.Final = true
				c.commit(t)
				c.finalized(t.entry)
				c.setStatus(StatusIdle, "")
				return OutcomeCompleted, nil
			}
			if ctx.Err() != nil || errors.Is(rerr, context.Canceled) {
				return c.abort(t), nil
			}
			return c.failTransport(t, rerr)
		}
	}
}

// abort applies the cancellation policy: an empty turn disappears, a turn
// with content is kept with the interruption marker appended.
func (c *Controller) abort(t *turn) Outcome {
	if !t.state.HasContent() {
		c.store.Delete(t.entry.ID)
		c.setStatus(StatusIdle, "")
		log.Debug().Str("turn_id", t.entry.ID).Msg("cancelled empty turn removed")
		return OutcomeCancelled
	}

	t.state = c.reducer.Apply(t.state, stream.MessageEnd{})
	t.state.Text += c.marker
	t.entry.Interrupted = true
	t.entry.Final = true
	c.commit(t)
	c.finalized(t.entry)
	c.setStatus(StatusIdle, "")
	return OutcomeCancelled
}

func (c *Controller) failProtocol(t *turn, msg string) (Outcome, error) {
	t.entry.Error = msg
	t.entry.Final = true
	c.commit(t)
	c.finalized(t.entry)
	c.setStatus(StatusError, msg)
	log.Warn().Str("turn_id", t.entry.ID).Str("message", msg).Msg("chat stream reported error")
	return OutcomeFailed, &ProtocolError{Message: msg}
}

func (c *Controller) failTransport(t *turn, rerr error) (Outcome, error) {
	err := &TransportError{Err: rerr}
	t.state = c.reducer.Apply(t.state, stream.MessageEnd{})
	t.entry.Error = err.Error()
	t.entry.Final = true
	c.commit(t)
	c.finalized(t.entry)
	c.setStatus(StatusError, err.Error())
	log.Warn().Err(rerr).Str("turn_id", t.entry.ID).Msg("chat stream read failed")
	return OutcomeFailed, err
}

// commit publishes the current snapshot. The state's slices are never
// written after being shared, so the store may keep the pointer.
func (c *Controller) commit(t *turn) {
	snapshot := t.state
	t.entry.State = &snapshot
	c.store.Put(t.entry)
}

func (c *Controller) finalized(e transcript.Entry) {
	if c.recordTurn != nil {
		c.recordTurn(e)
	}
}

func (c *Controller) setStatus(s Status, msg string) {
	c.mu.Lock()
	c.status = s
	c.errMsg = msg
	c.mu.Unlock()
}
