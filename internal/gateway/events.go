// ABOUTME: WebSocket event catalog: envelope names and payload shapes
// ABOUTME: Clients send and receive {event, data} JSON envelopes over /ws

package gateway

import (
	"encoding/json"

	"github.com/brainwave/chat-gateway/internal/store"
)

// Client-to-server event names
const (
	EventJoinChatRoom    = "join_chat_room"
	EventJoinCompanyRoom = "join_company_room"
	EventInitializeChat  = "initialize_chat"
	EventUserQuery       = "user_query"
	EventOnQueryTyping   = "on_query_typing"
	EventThread          = "thread"
	EventMessageList     = "message_list"
	EventFetchChatByID   = "fetch_chat_by_id"
	EventArchiveChat     = "archive_chat"
)

// Server-to-client event names not already in the request catalog.
// disable_query_input, start_streaming and stop_streaming are emitted by the
// stream coordinator.
const (
	EventError = "error"
)

// Envelope is the wire frame for every WebSocket message
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomRequest asks to join a chat or company room
type JoinRoomRequest struct {
	ChatID    string `json:"chat_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// InitializeChatRequest creates a chat before its first message
type InitializeChatRequest struct {
	ChatID       string   `json:"chat_id"`
	BrainID      string   `json:"brain_id"`
	Participants []string `json:"participants,omitempty"`
	Title        string   `json:"title,omitempty"`
}

// UserQueryRequest is one message submission
type UserQueryRequest struct {
	ChatID          string            `json:"chat_id"`
	TurnID          string            `json:"message_id,omitempty"` // client-generated, optional
	Question        string            `json:"question"`
	Media           []store.Media     `json:"media,omitempty"`
	WebSearchActive bool              `json:"web_search_active,omitempty"`
	CustomGPTDoc    bool              `json:"custom_gpt_doc,omitempty"`
	AgentCode       string            `json:"agent_code,omitempty"`
	AgentFields     map[string]string `json:"agent_fields,omitempty"`
	CanvasStart     *int              `json:"canvas_start,omitempty"`
	CanvasEnd       *int              `json:"canvas_end,omitempty"`
}

// UserQueryEcho is the authoritative turn broadcast to the chat room
type UserQueryEcho struct {
	ChatID       string        `json:"chat_id"`
	TurnID       string        `json:"message_id"`
	AuthorUserID string        `json:"author_user_id"`
	Question     string        `json:"question"`
	ProviderCode string        `json:"provider_code"`
	Media        []store.Media `json:"media,omitempty"`
	CreatedSeq   int64         `json:"created_seq"`
}

// TypingRequest signals that the author started or stopped typing in a chat
type TypingRequest struct {
	ChatID string `json:"chat_id"`
	Typing bool   `json:"typing"`
}

// TypingNotice is the broadcast to the chat room. Start signals are
// debounced server-side; stop signals always pass through.
type TypingNotice struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

// ThreadRequest appends a reply to a turn's question or answer thread
type ThreadRequest struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"message_id"`
	Side   string `json:"side"`
}

// ThreadUpdate is the aggregated badge broadcast after a reply
type ThreadUpdate struct {
	ChatID   string   `json:"chat_id"`
	TurnID   string   `json:"message_id"`
	Side     string   `json:"side"`
	Count    int      `json:"count"`
	UserIDs  []string `json:"user_ids"`
	LastTime string   `json:"last_time"`
}

// MessageListRequest asks for one backward page of history
type MessageListRequest struct {
	ChatID string `json:"chat_id"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// MessageListReply carries one page of turns, ascending by sequence
type MessageListReply struct {
	ChatID string     `json:"chat_id"`
	Offset int        `json:"offset"`
	Total  int        `json:"total"`
	Turns  []TurnView `json:"messages"`
}

// TurnView is the display shape of a persisted turn. Suppressed turns keep
// their stored answer but expose none of it here.
type TurnView struct {
	TurnID         string        `json:"message_id"`
	AuthorUserID   string        `json:"author_user_id"`
	Question       string        `json:"question"`
	Answer         string        `json:"answer"`
	ProviderCode   string        `json:"provider_code"`
	Media          []store.Media `json:"media,omitempty"`
	CreatedSeq     int64         `json:"created_seq"`
	Suppressed     bool          `json:"suppressed,omitempty"`
	QuestionThread BadgeView     `json:"question_thread"`
	AnswerThread   BadgeView     `json:"answer_thread"`
	CreatedAt      string        `json:"created_at"`
}

// BadgeView is the display shape of a thread badge
type BadgeView struct {
	Count    int      `json:"count"`
	UserIDs  []string `json:"user_ids,omitempty"`
	LastTime string   `json:"last_time,omitempty"`
}

// FetchChatRequest asks for one chat's metadata
type FetchChatRequest struct {
	ChatID string `json:"chat_id"`
}

// ChatView is the display shape of a chat
type ChatView struct {
	ChatID       string   `json:"chat_id"`
	BrainID      string   `json:"brain_id"`
	CompanyID    string   `json:"company_id"`
	Participants []string `json:"participants"`
	Title        string   `json:"title"`
	Archived     bool     `json:"archived"`
}

// ArchiveChatRequest archives a chat, suppressing any in-flight stream
type ArchiveChatRequest struct {
	ChatID string `json:"chat_id"`
}

// ErrorReply is sent only to the submitter whose request failed
type ErrorReply struct {
	Event  string `json:"source_event"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Error codes carried in ErrorReply
const (
	ErrCodeCreditExceeded = "credit_limit_exceeded"
	ErrCodeInvalidAgent   = "invalid_agent_payload"
	ErrCodeChatArchived   = "chat_archived"
	ErrCodeChatBusy       = "chat_busy"
	ErrCodeNotFound       = "not_found"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInternal       = "internal_error"
)
