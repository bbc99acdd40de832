// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides chat/turn persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chats (
			id           TEXT PRIMARY KEY,
			brain_id     TEXT NOT NULL,
			company_id   TEXT NOT NULL,
			participants TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			archived     INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chats_company ON chats(company_id, updated_at);

		CREATE TABLE IF NOT EXISTS turns (
			id             TEXT PRIMARY KEY,
			chat_id        TEXT NOT NULL,
			author_user_id TEXT NOT NULL,
			question_text  TEXT NOT NULL,
			answer_text    TEXT NOT NULL DEFAULT '',
			provider_code  TEXT NOT NULL,
			media_json     TEXT,
			created_seq    INTEGER NOT NULL,
			suppressed     INTEGER NOT NULL DEFAULT 0,
			settled        INTEGER NOT NULL DEFAULT 0,
			credit_cost    INTEGER NOT NULL DEFAULT 0,
			q_reply_count  INTEGER NOT NULL DEFAULT 0,
			q_reply_users  TEXT,
			q_reply_last   TEXT,
			a_reply_count  INTEGER NOT NULL DEFAULT 0,
			a_reply_users  TEXT,
			a_reply_last   TEXT,
			created_at     TEXT NOT NULL,

			FOREIGN KEY (chat_id) REFERENCES chats(id),
			UNIQUE (chat_id, created_seq)
		);

		CREATE INDEX IF NOT EXISTS idx_turns_chat_seq ON turns(chat_id, created_seq);

		CREATE TABLE IF NOT EXISTS reply_threads (
			id         TEXT PRIMARY KEY,
			turn_id    TEXT NOT NULL,
			side       TEXT NOT NULL,
			sender_id  TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (side IN ('question', 'answer')),
			FOREIGN KEY (turn_id) REFERENCES turns(id)
		);

		CREATE INDEX IF NOT EXISTS idx_replies_turn ON reply_threads(turn_id, created_at);

		CREATE TABLE IF NOT EXISTS credit_ledger (
			company_id   TEXT PRIMARY KEY,
			credit_limit INTEGER NOT NULL,
			used         INTEGER NOT NULL DEFAULT 0,
			updated_at   TEXT NOT NULL,

			CHECK (used >= 0),
			CHECK (used <= credit_limit)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateChat inserts a new chat.
// Zero timestamps are filled in with the current time.
// Returns ErrDuplicateChat if a chat with the same ID exists.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *Chat) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = chat.CreatedAt
	}

	participants, err := json.Marshal(chat.Participants)
	if err != nil {
		return fmt.Errorf("encoding participants: %w", err)
	}

	query := `
		INSERT INTO chats (id, brain_id, company_id, participants, title, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		chat.ID,
		chat.BrainID,
		chat.CompanyID,
		string(participants),
		chat.Title,
		boolToInt(chat.Archived),
		chat.CreatedAt.UTC().Format(time.RFC3339Nano),
		chat.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateChat
		}
		return fmt.Errorf("inserting chat: %w", err)
	}

	s.logger.Debug("chat created", "chat_id", chat.ID, "company_id", chat.CompanyID)
	return nil
}

// GetChat retrieves a chat by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*Chat, error) {
	query := `
		SELECT id, brain_id, company_id, participants, title, archived, created_at, updated_at
		FROM chats WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	return scanChat(row)
}

// ArchiveChat marks a chat as archived. Archived chats reject new turns.
func (s *SQLiteStore) ArchiveChat(ctx context.Context, id string) error {
	query := `UPDATE chats SET archived = 1, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("archiving chat: %w", err)
	}
	return requireRow(result)
}

// SetChatTitle updates a chat's title
func (s *SQLiteStore) SetChatTitle(ctx context.Context, id, title string) error {
	query := `UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, title, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("updating chat title: %w", err)
	}
	return requireRow(result)
}

// ListChats returns the most recently updated chats for a company
func (s *SQLiteStore) ListChats(ctx context.Context, companyID string, limit int) ([]*Chat, error) {
	query := `
		SELECT id, brain_id, company_id, participants, title, archived, created_at, updated_at
		FROM chats
		WHERE company_id = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chats []*Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat rows: %w", err)
	}
	return chats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanChat(row scanner) (*Chat, error) {
	var chat Chat
	var participants string
	var archived int
	var createdAt, updatedAt string

	err := row.Scan(
		&chat.ID,
		&chat.BrainID,
		&chat.CompanyID,
		&participants,
		&chat.Title,
		&archived,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chat row: %w", err)
	}

	if err := json.Unmarshal([]byte(participants), &chat.Participants); err != nil {
		return nil, fmt.Errorf("decoding participants: %w", err)
	}
	chat.Archived = archived != 0
	if chat.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if chat.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &chat, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow converts a zero-rows-affected update into ErrNotFound
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces constraint errors by message; there is no
	// exported error type to match against.
	return strings.Contains(err.Error(), "constraint failed")
}

// Ensure SQLiteStore implements the Store interface
var _ Store = (*SQLiteStore)(nil)
