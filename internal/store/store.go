// ABOUTME: Store interface and data types for chat-gateway persistence
// ABOUTME: Defines Chat, Turn, ReplyEntry, LedgerEntry and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateChat is returned when trying to create a chat that already exists
var ErrDuplicateChat = errors.New("chat already exists")

// ErrChatArchived is returned when a write targets an archived chat
var ErrChatArchived = errors.New("chat is archived")

// ErrTurnSettled is returned when trying to settle a turn twice.
// Answers are immutable once written.
var ErrTurnSettled = errors.New("turn already settled")

// MediaKind constants for attached media
const (
	MediaKindImage    = "image"
	MediaKindDocument = "document"
	MediaKindAudio    = "audio"
	MediaKindVideo    = "video"
)

// Media is a reference to an uploaded file. Only the URL is stored here;
// the bytes live in external object storage.
type Media struct {
	URL       string `json:"url"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	CustomGPT bool   `json:"custom_gpt,omitempty"` // document belongs to a custom GPT
}

// Chat is one conversation between a company's users and a brain.
type Chat struct {
	ID           string
	BrainID      string
	CompanyID    string
	Participants []string
	Title        string
	Archived     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ThreadSide constants for reply threads
const (
	ThreadSideQuestion = "question"
	ThreadSideAnswer   = "answer"
)

// ThreadBadge is the aggregated reply-thread state shown on a turn.
type ThreadBadge struct {
	Count    int
	UserIDs  []string
	LastTime time.Time
}

// Turn is one question/answer exchange within a chat.
// CreatedSeq is strictly increasing within a chat and assigned by the store.
// AnswerText is empty while streaming and immutable once settled.
type Turn struct {
	ID             string
	ChatID         string
	AuthorUserID   string
	QuestionText   string
	AnswerText     string
	ProviderCode   string
	Media          []Media
	CreatedSeq     int64
	Suppressed     bool
	Settled        bool
	CreditCost     int64
	QuestionThread ThreadBadge
	AnswerThread   ThreadBadge
	CreatedAt      time.Time
}

// ReplyEntry is one message in a turn's side thread. Append-only.
type ReplyEntry struct {
	ID        string
	TurnID    string
	Side      string // "question" or "answer"
	SenderID  string
	CreatedAt time.Time
}

// LedgerEntry is the per-company message-credit account.
// Invariant: Used never exceeds Limit after a passing admission check.
type LedgerEntry struct {
	CompanyID string
	Limit     int64
	Used      int64
	UpdatedAt time.Time
}

// Store defines the interface for chat, turn and credit persistence
type Store interface {
	// Chats
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ArchiveChat(ctx context.Context, id string) error
	SetChatTitle(ctx context.Context, id, title string) error
	ListChats(ctx context.Context, companyID string, limit int) ([]*Chat, error)

	// Turns
	CreateTurn(ctx context.Context, turn *Turn) error
	GetTurn(ctx context.Context, id string) (*Turn, error)
	SettleTurn(ctx context.Context, turnID, answerText string, suppressed bool) error
	ListTurns(ctx context.Context, chatID string, offset, limit int) ([]*Turn, error)
	CountTurns(ctx context.Context, chatID string) (int, error)

	// Reply threads
	AppendReply(ctx context.Context, entry *ReplyEntry) (*ThreadBadge, error)
	ListReplies(ctx context.Context, turnID, side string) ([]*ReplyEntry, error)

	// Credit ledger
	EnsureLedger(ctx context.Context, companyID string, limit int64) error
	GetLedger(ctx context.Context, companyID string) (*LedgerEntry, error)
	ReserveCredits(ctx context.Context, companyID string, cost int64) (*LedgerEntry, bool, error)
	ResetLedger(ctx context.Context, companyID string, newLimit int64) error

	// Close releases any resources held by the store
	Close() error
}
