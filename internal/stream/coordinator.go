// ABOUTME: Streaming session coordinator: one active answer stream per chat
// ABOUTME: Rebroadcasts chunks in arrival order, settles the turn exactly once

package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brainwave/chat-gateway/internal/provider"
	"github.com/brainwave/chat-gateway/internal/room"
)

// ErrChatBusy is returned when a chat already has an answer streaming
var ErrChatBusy = errors.New("chat already has an active stream")

// ErrorAnswer is persisted as the turn's answer when the backend fails or
// stalls, so history stays linear with one answer per question.
const ErrorAnswer = "Something went wrong while generating this answer. Please try again."

// State of a streaming session
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateStreaming
	StateStopped
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatched:
		return "dispatched"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TurnSettler persists the final answer of a turn
type TurnSettler interface {
	SettleTurn(ctx context.Context, turnID, answerText string, suppressed bool) error
}

// Session is one in-flight answer stream for a chat
type Session struct {
	ChatID string
	TurnID string

	mu         sync.Mutex
	state      State
	suppressed bool
	buf        strings.Builder
}

// State returns the session's current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Coordinator runs streaming sessions. At most one session is active per
// chat; a second submission while one is streaming is rejected up front.
type Coordinator struct {
	store    TurnSettler
	rooms    *room.Registry
	watchdog time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session // by chat ID
}

// NewCoordinator creates a Coordinator. watchdog bounds the wait for each
// next chunk; a stalled backend settles the turn with the error answer.
func NewCoordinator(store TurnSettler, rooms *room.Registry, watchdog time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if watchdog <= 0 {
		watchdog = 60 * time.Second
	}
	return &Coordinator{
		store:    store,
		rooms:    rooms,
		watchdog: watchdog,
		logger:   logger.With("component", "stream"),
		sessions: make(map[string]*Session),
	}
}

// Begin claims the chat for a new session and broadcasts
// disable_query_input to its room. Returns ErrChatBusy if a session is
// already active for the chat.
func (c *Coordinator) Begin(chatID, turnID string) (*Session, error) {
	c.mu.Lock()
	if _, ok := c.sessions[chatID]; ok {
		c.mu.Unlock()
		return nil, ErrChatBusy
	}
	session := &Session{ChatID: chatID, TurnID: turnID, state: StateDispatched}
	c.sessions[chatID] = session
	c.mu.Unlock()

	c.rooms.Broadcast(room.ChatRoom(chatID), disableQueryInputEvent(chatID, turnID))
	c.logger.Debug("stream session started", "chat_id", chatID, "turn_id", turnID)
	return session, nil
}

// Active reports whether a chat currently has a streaming session
func (c *Coordinator) Active(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[chatID]
	return ok
}

// Suppress marks the chat's active session, if any, as suppressed. The
// stream keeps running and its answer is still persisted in full, but
// nothing more is broadcast to the room. Used when a chat is archived
// mid-stream.
func (c *Coordinator) Suppress(chatID string) {
	c.mu.Lock()
	session, ok := c.sessions[chatID]
	c.mu.Unlock()
	if !ok {
		return
	}
	session.mu.Lock()
	session.suppressed = true
	session.mu.Unlock()
	c.logger.Info("stream suppressed", "chat_id", chatID, "turn_id", session.TurnID)
}

// Run consumes the backend chunk channel until it settles, blocking the
// caller. Each text chunk is appended to the answer buffer and rebroadcast
// verbatim in arrival order. Exactly one terminal settle happens per
// session: done, backend error, watchdog timeout, or context cancellation
// all end with the turn persisted and the chat released.
func (c *Coordinator) Run(ctx context.Context, session *Session, chunks <-chan provider.Chunk) error {
	defer c.release(session.ChatID)
	// A settled session stops forwarding, but the backend may still be
	// sending. Drain the channel so its sender can finish and close.
	defer func() {
		go func() {
			for range chunks {
			}
		}()
	}()

	timer := time.NewTimer(c.watchdog)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Warn("stream canceled", "chat_id", session.ChatID, "turn_id", session.TurnID)
			return c.settle(session, StateErrored, ErrorAnswer)

		case <-timer.C:
			c.logger.Warn("stream watchdog fired",
				"chat_id", session.ChatID,
				"turn_id", session.TurnID,
				"timeout", c.watchdog)
			return c.settle(session, StateErrored, ErrorAnswer)

		case chunk, ok := <-chunks:
			if !ok {
				// Channel closed without a done event
				return c.settle(session, StateErrored, ErrorAnswer)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.watchdog)

			switch chunk.Event {
			case provider.EventText:
				c.handleText(session, chunk.Text)
			case provider.EventDone:
				return c.settle(session, StateStopped, "")
			case provider.EventError:
				c.logger.Error("backend stream error",
					"chat_id", session.ChatID,
					"turn_id", session.TurnID,
					"error", chunk.Err)
				return c.settle(session, StateErrored, ErrorAnswer)
			}
		}
	}
}

func (c *Coordinator) handleText(session *Session, text string) {
	session.mu.Lock()
	if session.state == StateDispatched {
		session.state = StateStreaming
	}
	session.buf.WriteString(text)
	suppressed := session.suppressed
	session.mu.Unlock()

	if suppressed {
		return
	}
	c.rooms.Broadcast(room.ChatRoom(session.ChatID), chunkEvent(session.ChatID, session.TurnID, text))
}

// settle persists the final answer and broadcasts stop_streaming. When
// errAnswer is non-empty it replaces whatever was buffered.
func (c *Coordinator) settle(session *Session, terminal State, errAnswer string) error {
	session.mu.Lock()
	answer := session.buf.String()
	if errAnswer != "" {
		answer = errAnswer
	}
	session.state = terminal
	suppressed := session.suppressed
	session.buf.Reset()
	session.mu.Unlock()

	// Persistence must happen even when the room broadcast is suppressed
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.store.SettleTurn(ctx, session.TurnID, answer, suppressed)
	if err != nil {
		c.logger.Error("settling turn failed",
			"chat_id", session.ChatID,
			"turn_id", session.TurnID,
			"error", err)
	}

	if !suppressed {
		failed := terminal == StateErrored
		c.rooms.Broadcast(room.ChatRoom(session.ChatID),
			stopStreamingEvent(session.ChatID, session.TurnID, answer, failed))
	}

	c.logger.Info("stream settled",
		"chat_id", session.ChatID,
		"turn_id", session.TurnID,
		"state", terminal.String(),
		"suppressed", suppressed,
		"answer_len", len(answer))
	return err
}

func (c *Coordinator) release(chatID string) {
	c.mu.Lock()
	delete(c.sessions, chatID)
	c.mu.Unlock()
}
