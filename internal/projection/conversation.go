// ABOUTME: Client-side conversation projection: an explicit event reducer
// ABOUTME: Mirrors what a connected UI derives from the room event stream

package projection

import (
	"log/slog"

	"github.com/brainwave/chat-gateway/internal/store"
)

// Turn is one rendered question/answer exchange. Pending marks an optimistic
// local turn that has not been echoed back yet; Streaming marks the turn
// whose answer is still arriving.
type Turn struct {
	ID             string
	AuthorUserID   string
	QuestionText   string
	AnswerText     string
	ProviderCode   string
	Media          []store.Media
	CreatedSeq     int64
	Pending        bool
	Streaming      bool
	QuestionThread store.ThreadBadge
	AnswerThread   store.ThreadBadge
}

// Event is a state transition applied to a Conversation
type Event interface {
	isEvent()
}

// UserQuery adds a turn. With Optimistic set it is a locally created turn
// awaiting its authoritative echo; without it, it is the echo, which merges
// into the optimistic turn of the same ID instead of duplicating it.
type UserQuery struct {
	Turn       Turn
	Optimistic bool
}

// StreamChunk appends text to the in-flight turn's answer
type StreamChunk struct {
	TurnID string
	Text   string
}

// StreamStop finalizes the in-flight turn's answer
type StreamStop struct {
	TurnID string
	Answer string
	Failed bool
}

// ThreadBump updates a turn's reply-thread badge for one side
type ThreadBump struct {
	TurnID string
	Side   string
	Badge  store.ThreadBadge
}

// HistoryPage prepends an older page of turns, ascending by sequence
type HistoryPage struct {
	Turns []Turn
}

func (UserQuery) isEvent()   {}
func (StreamChunk) isEvent() {}
func (StreamStop) isEvent()  {}
func (ThreadBump) isEvent()  {}
func (HistoryPage) isEvent() {}

// Conversation is the ordered turn list for one open chat. Not safe for
// concurrent use; callers apply events from a single goroutine, the same way
// a UI event loop would.
type Conversation struct {
	ChatID string

	turns      []*Turn
	index      map[string]*Turn
	inFlightID string
	stale      int

	logger *slog.Logger
}

// NewConversation creates an empty projection for a chat
func NewConversation(chatID string, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{
		ChatID: chatID,
		index:  make(map[string]*Turn),
		logger: logger.With("component", "projection", "chat_id", chatID),
	}
}

// Apply reduces one event into the conversation state
func (c *Conversation) Apply(ev Event) {
	switch e := ev.(type) {
	case UserQuery:
		c.applyUserQuery(e)
	case StreamChunk:
		c.applyChunk(e)
	case StreamStop:
		c.applyStop(e)
	case ThreadBump:
		c.applyThreadBump(e)
	case HistoryPage:
		c.applyHistoryPage(e)
	}
}

func (c *Conversation) applyUserQuery(e UserQuery) {
	if existing, ok := c.index[e.Turn.ID]; ok {
		// Authoritative echo of an optimistic turn: merge in place
		seq := e.Turn.CreatedSeq
		*existing = e.Turn
		existing.CreatedSeq = seq
		existing.Pending = false
		existing.Streaming = true
		c.inFlightID = existing.ID
		return
	}

	turn := e.Turn
	turn.Pending = e.Optimistic
	turn.Streaming = !e.Optimistic
	c.append(&turn)
	c.inFlightID = turn.ID
}

func (c *Conversation) applyChunk(e StreamChunk) {
	if e.TurnID != c.inFlightID {
		c.stale++
		c.logger.Debug("stale chunk ignored", "turn_id", e.TurnID)
		return
	}
	turn := c.index[e.TurnID]
	turn.AnswerText += e.Text
	turn.Streaming = true
}

func (c *Conversation) applyStop(e StreamStop) {
	if e.TurnID != c.inFlightID {
		c.stale++
		c.logger.Debug("stale stop ignored", "turn_id", e.TurnID)
		return
	}
	turn := c.index[e.TurnID]
	turn.AnswerText = e.Answer
	turn.Streaming = false
	c.inFlightID = ""
}

func (c *Conversation) applyThreadBump(e ThreadBump) {
	turn, ok := c.index[e.TurnID]
	if !ok {
		// Thread activity on a turn outside the loaded window
		return
	}
	switch e.Side {
	case store.ThreadSideQuestion:
		turn.QuestionThread = e.Badge
	case store.ThreadSideAnswer:
		turn.AnswerThread = e.Badge
	}
}

func (c *Conversation) applyHistoryPage(e HistoryPage) {
	fresh := make([]*Turn, 0, len(e.Turns))
	for i := range e.Turns {
		turn := e.Turns[i]
		if _, ok := c.index[turn.ID]; ok {
			continue
		}
		c.index[turn.ID] = &turn
		fresh = append(fresh, &turn)
	}
	c.turns = append(fresh, c.turns...)
}

func (c *Conversation) append(turn *Turn) {
	c.turns = append(c.turns, turn)
	c.index[turn.ID] = turn
}

// Turns returns the current ordered turn list, oldest first
func (c *Conversation) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = *t
	}
	return out
}

// Turn returns one turn by ID
func (c *Conversation) Turn(id string) (Turn, bool) {
	t, ok := c.index[id]
	if !ok {
		return Turn{}, false
	}
	return *t, true
}

// StaleEvents returns how many chunk or stop events were ignored because
// their turn was no longer in flight
func (c *Conversation) StaleEvents() int {
	return c.stale
}

// Streaming reports whether an answer is currently in flight
func (c *Conversation) Streaming() bool {
	return c.inFlightID != ""
}
