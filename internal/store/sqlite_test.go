// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers chat CRUD, turn sequencing, answer immutability, and pagination

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func newTestChat(t *testing.T, s *SQLiteStore, id string) *Chat {
	t.Helper()
	chat := &Chat{
		ID:           id,
		BrainID:      "brain-001",
		CompanyID:    "company-001",
		Participants: []string{"user-001"},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateChat(context.Background(), chat); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	return chat
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetChat(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	chat := &Chat{
		ID:           "chat-123",
		BrainID:      "brain-001",
		CompanyID:    "company-001",
		Participants: []string{"user-001", "user-002"},
		Title:        "Quarterly planning",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if err := s.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	got, err := s.GetChat(ctx, "chat-123")
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}

	if got.ID != chat.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, chat.ID)
	}
	if got.BrainID != chat.BrainID {
		t.Errorf("BrainID mismatch: got %q, want %q", got.BrainID, chat.BrainID)
	}
	if got.CompanyID != chat.CompanyID {
		t.Errorf("CompanyID mismatch: got %q, want %q", got.CompanyID, chat.CompanyID)
	}
	if len(got.Participants) != 2 || got.Participants[0] != "user-001" {
		t.Errorf("Participants mismatch: got %v", got.Participants)
	}
	if got.Title != chat.Title {
		t.Errorf("Title mismatch: got %q, want %q", got.Title, chat.Title)
	}
	if got.Archived {
		t.Error("new chat should not be archived")
	}
}

func TestGetChat_NotFound(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.GetChat(context.Background(), "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateChat_Duplicate(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	chat := newTestChat(t, s, "chat-dup")
	if err := s.CreateChat(context.Background(), chat); err != ErrDuplicateChat {
		t.Errorf("expected ErrDuplicateChat, got %v", err)
	}
}

func TestArchiveChat(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-arch")

	if err := s.ArchiveChat(ctx, "chat-arch"); err != nil {
		t.Fatalf("ArchiveChat failed: %v", err)
	}

	got, err := s.GetChat(ctx, "chat-arch")
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if !got.Archived {
		t.Error("chat should be archived")
	}

	if err := s.ArchiveChat(ctx, "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing chat, got %v", err)
	}
}

func TestCreate_DefaultsZeroTimestamps(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	chat := &Chat{
		ID:           "chat-ts",
		BrainID:      "brain-001",
		CompanyID:    "company-001",
		Participants: []string{"user-001"},
	}
	if err := s.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if chat.CreatedAt.IsZero() || chat.UpdatedAt.IsZero() {
		t.Error("chat timestamps were not defaulted")
	}
	got, err := s.GetChat(ctx, "chat-ts")
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("persisted chat timestamps are zero")
	}

	turn := &Turn{
		ID:           "turn-ts",
		ChatID:       "chat-ts",
		AuthorUserID: "user-001",
		QuestionText: "q",
		ProviderCode: "PLAIN",
	}
	if err := s.CreateTurn(ctx, turn); err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}
	gotTurn, err := s.GetTurn(ctx, "turn-ts")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if gotTurn.CreatedAt.IsZero() {
		t.Error("persisted turn created_at is zero")
	}

	badge, err := s.AppendReply(ctx, &ReplyEntry{
		ID: "r-ts", TurnID: "turn-ts", Side: ThreadSideAnswer, SenderID: "user-002",
	})
	if err != nil {
		t.Fatalf("AppendReply failed: %v", err)
	}
	if badge.LastTime.IsZero() {
		t.Error("badge last time is zero")
	}
}

func TestCreateTurn_ArchivedChatRejected(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-closed")
	if err := s.ArchiveChat(ctx, "chat-closed"); err != nil {
		t.Fatalf("ArchiveChat failed: %v", err)
	}

	turn := &Turn{
		ID:           "turn-late",
		ChatID:       "chat-closed",
		AuthorUserID: "user-001",
		QuestionText: "too late",
		ProviderCode: "PLAIN",
	}
	if err := s.CreateTurn(ctx, turn); err != ErrChatArchived {
		t.Errorf("expected ErrChatArchived, got %v", err)
	}

	turn.ChatID = "nonexistent"
	if err := s.CreateTurn(ctx, turn); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing chat, got %v", err)
	}
}

func TestCreateTurn_AssignsIncreasingSeq(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-seq")

	var lastSeq int64
	for i := 0; i < 5; i++ {
		turn := &Turn{
			ID:           fmt.Sprintf("turn-%d", i),
			ChatID:       "chat-seq",
			AuthorUserID: "user-001",
			QuestionText: fmt.Sprintf("question %d", i),
			ProviderCode: "PLAIN",
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.CreateTurn(ctx, turn); err != nil {
			t.Fatalf("CreateTurn %d failed: %v", i, err)
		}
		if turn.CreatedSeq <= lastSeq {
			t.Errorf("seq not strictly increasing: got %d after %d", turn.CreatedSeq, lastSeq)
		}
		lastSeq = turn.CreatedSeq
	}
}

func TestSettleTurn_Immutable(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-settle")

	turn := &Turn{
		ID:           "turn-settle",
		ChatID:       "chat-settle",
		AuthorUserID: "user-001",
		QuestionText: "hello?",
		ProviderCode: "PLAIN",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateTurn(ctx, turn); err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}

	if err := s.SettleTurn(ctx, "turn-settle", "Hello!", false); err != nil {
		t.Fatalf("SettleTurn failed: %v", err)
	}

	got, err := s.GetTurn(ctx, "turn-settle")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if got.AnswerText != "Hello!" {
		t.Errorf("AnswerText mismatch: got %q", got.AnswerText)
	}
	if !got.Settled {
		t.Error("turn should be settled")
	}

	// Second settle must not overwrite the answer
	if err := s.SettleTurn(ctx, "turn-settle", "overwritten", false); err != ErrTurnSettled {
		t.Errorf("expected ErrTurnSettled, got %v", err)
	}
	got, _ = s.GetTurn(ctx, "turn-settle")
	if got.AnswerText != "Hello!" {
		t.Errorf("answer was mutated after settle: got %q", got.AnswerText)
	}

	if err := s.SettleTurn(ctx, "nonexistent", "x", false); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing turn, got %v", err)
	}
}

func TestSettleTurn_Suppressed(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-sup")

	turn := &Turn{
		ID:           "turn-sup",
		ChatID:       "chat-sup",
		AuthorUserID: "user-001",
		QuestionText: "q",
		ProviderCode: "PLAIN",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateTurn(ctx, turn); err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}

	if err := s.SettleTurn(ctx, "turn-sup", "full answer", true); err != nil {
		t.Fatalf("SettleTurn failed: %v", err)
	}

	got, err := s.GetTurn(ctx, "turn-sup")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if !got.Suppressed {
		t.Error("turn should be suppressed")
	}
	// Persisted answer stays complete even when suppressed
	if got.AnswerText != "full answer" {
		t.Errorf("suppressed turn lost its answer: got %q", got.AnswerText)
	}
}

func TestListTurns_BackwardPagination(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-page")

	for i := 0; i < 10; i++ {
		turn := &Turn{
			ID:           fmt.Sprintf("turn-p%d", i),
			ChatID:       "chat-page",
			AuthorUserID: "user-001",
			QuestionText: fmt.Sprintf("q%d", i),
			ProviderCode: "PLAIN",
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.CreateTurn(ctx, turn); err != nil {
			t.Fatalf("CreateTurn failed: %v", err)
		}
	}

	// First page: the 4 newest turns, ascending
	page, err := s.ListTurns(ctx, "chat-page", 0, 4)
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(page) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(page))
	}
	if page[0].ID != "turn-p6" || page[3].ID != "turn-p9" {
		t.Errorf("first page wrong: %s..%s", page[0].ID, page[3].ID)
	}

	// Second page: the 4 before those
	page, err = s.ListTurns(ctx, "chat-page", 4, 4)
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if page[0].ID != "turn-p2" || page[3].ID != "turn-p5" {
		t.Errorf("second page wrong: %s..%s", page[0].ID, page[3].ID)
	}

	count, err := s.CountTurns(ctx, "chat-page")
	if err != nil {
		t.Fatalf("CountTurns failed: %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10 turns, got %d", count)
	}
}

func TestTurn_MediaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-media")

	turn := &Turn{
		ID:           "turn-media",
		ChatID:       "chat-media",
		AuthorUserID: "user-001",
		QuestionText: "summarize this",
		ProviderCode: "DOC",
		Media: []Media{
			{URL: "https://cdn.example.com/spec.pdf", Kind: MediaKindDocument, Name: "spec.pdf"},
			{URL: "https://cdn.example.com/gpt.pdf", Kind: MediaKindDocument, Name: "gpt.pdf", CustomGPT: true},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateTurn(ctx, turn); err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}

	got, err := s.GetTurn(ctx, "turn-media")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if len(got.Media) != 2 {
		t.Fatalf("expected 2 media, got %d", len(got.Media))
	}
	if !got.Media[1].CustomGPT {
		t.Error("custom GPT tag lost in round trip")
	}
}

func TestAppendReply_UpdatesBadge(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx := context.Background()
	newTestChat(t, s, "chat-thread")

	turn := &Turn{
		ID:           "turn-thread",
		ChatID:       "chat-thread",
		AuthorUserID: "user-001",
		QuestionText: "q",
		ProviderCode: "PLAIN",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateTurn(ctx, turn); err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	badge, err := s.AppendReply(ctx, &ReplyEntry{
		ID: "r1", TurnID: "turn-thread", Side: ThreadSideQuestion, SenderID: "user-002", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("AppendReply failed: %v", err)
	}
	if badge.Count != 1 || len(badge.UserIDs) != 1 {
		t.Errorf("badge wrong after first reply: %+v", badge)
	}

	// Same sender again: count bumps, users stay deduped
	badge, err = s.AppendReply(ctx, &ReplyEntry{
		ID: "r2", TurnID: "turn-thread", Side: ThreadSideQuestion, SenderID: "user-002", CreatedAt: now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("AppendReply failed: %v", err)
	}
	if badge.Count != 2 || len(badge.UserIDs) != 1 {
		t.Errorf("badge wrong after duplicate sender: %+v", badge)
	}

	// Answer side is independent
	badge, err = s.AppendReply(ctx, &ReplyEntry{
		ID: "r3", TurnID: "turn-thread", Side: ThreadSideAnswer, SenderID: "user-003", CreatedAt: now.Add(2 * time.Second),
	})
	if err != nil {
		t.Fatalf("AppendReply failed: %v", err)
	}
	if badge.Count != 1 {
		t.Errorf("answer badge wrong: %+v", badge)
	}

	got, err := s.GetTurn(ctx, "turn-thread")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if got.QuestionThread.Count != 2 || got.AnswerThread.Count != 1 {
		t.Errorf("turn badges wrong: q=%+v a=%+v", got.QuestionThread, got.AnswerThread)
	}

	entries, err := s.ListReplies(ctx, "turn-thread", ThreadSideQuestion)
	if err != nil {
		t.Fatalf("ListReplies failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 question replies, got %d", len(entries))
	}
}

func TestAppendReply_InvalidSide(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.AppendReply(context.Background(), &ReplyEntry{
		ID: "r-bad", TurnID: "t", Side: "sideways", SenderID: "u", CreatedAt: time.Now(),
	})
	if err == nil {
		t.Error("expected error for invalid side")
	}
}
