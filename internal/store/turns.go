// ABOUTME: SQLite implementation for turn persistence and backward pagination
// ABOUTME: Assigns the per-chat created_seq and enforces answer immutability

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateTurn inserts a new turn with the next created_seq for its chat.
// The sequence is assigned inside the insert statement, so it stays strictly
// increasing even with concurrent writers (SQLite serializes writes).
// The turn's CreatedSeq field is populated on return; a zero CreatedAt is
// filled in with the current time.
// Returns ErrChatArchived when the chat no longer accepts turns.
func (s *SQLiteStore) CreateTurn(ctx context.Context, turn *Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	var archived int
	err := s.db.QueryRowContext(ctx, `SELECT archived FROM chats WHERE id = ?`, turn.ChatID).Scan(&archived)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking chat: %w", err)
	}
	if archived != 0 {
		return ErrChatArchived
	}

	mediaJSON, err := json.Marshal(turn.Media)
	if err != nil {
		return fmt.Errorf("encoding media: %w", err)
	}

	query := `
		INSERT INTO turns (
			id, chat_id, author_user_id, question_text, answer_text, provider_code,
			media_json, created_seq, suppressed, settled, credit_cost, created_at
		)
		VALUES (?, ?, ?, ?, '', ?, ?,
			(SELECT COALESCE(MAX(created_seq), 0) + 1 FROM turns WHERE chat_id = ?),
			0, 0, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		turn.ID,
		turn.ChatID,
		turn.AuthorUserID,
		turn.QuestionText,
		turn.ProviderCode,
		string(mediaJSON),
		turn.ChatID,
		turn.CreditCost,
		turn.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT created_seq FROM turns WHERE id = ?`, turn.ID)
	if err := row.Scan(&turn.CreatedSeq); err != nil {
		return fmt.Errorf("reading assigned seq: %w", err)
	}

	s.logger.Debug("turn created",
		"turn_id", turn.ID,
		"chat_id", turn.ChatID,
		"seq", turn.CreatedSeq,
		"provider", turn.ProviderCode)
	return nil
}

// GetTurn retrieves a turn by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	row := s.db.QueryRowContext(ctx, turnSelect+` WHERE id = ?`, id)
	return scanTurn(row)
}

// SettleTurn writes the final answer text exactly once.
// Returns ErrTurnSettled if the turn was already settled, ErrNotFound if the
// turn doesn't exist.
func (s *SQLiteStore) SettleTurn(ctx context.Context, turnID, answerText string, suppressed bool) error {
	query := `
		UPDATE turns SET answer_text = ?, suppressed = ?, settled = 1
		WHERE id = ? AND settled = 0
	`
	result, err := s.db.ExecContext(ctx, query, answerText, boolToInt(suppressed), turnID)
	if err != nil {
		return fmt.Errorf("settling turn: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish missing from already-settled
		if _, getErr := s.GetTurn(ctx, turnID); getErr != nil {
			return getErr
		}
		return ErrTurnSettled
	}

	s.logger.Debug("turn settled",
		"turn_id", turnID,
		"suppressed", suppressed,
		"answer_len", len(answerText))
	return nil
}

// ListTurns returns one backward page of turns for a chat.
// Offset counts back from the newest turn; the returned slice is in
// ascending sequence order so callers can splice it at the top of the list.
func (s *SQLiteStore) ListTurns(ctx context.Context, chatID string, offset, limit int) ([]*Turn, error) {
	query := turnSelect + `
		WHERE chat_id = ?
		ORDER BY created_seq DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	// Reverse into ascending order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CountTurns returns the total number of turns in a chat
func (s *SQLiteStore) CountTurns(ctx context.Context, chatID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE chat_id = ?`, chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting turns: %w", err)
	}
	return count, nil
}

const turnSelect = `
	SELECT id, chat_id, author_user_id, question_text, answer_text, provider_code,
	       media_json, created_seq, suppressed, settled, credit_cost,
	       q_reply_count, q_reply_users, q_reply_last,
	       a_reply_count, a_reply_users, a_reply_last,
	       created_at
	FROM turns
`

func scanTurn(row scanner) (*Turn, error) {
	var turn Turn
	var mediaJSON sql.NullString
	var suppressed, settled int
	var qUsers, qLast, aUsers, aLast sql.NullString
	var createdAt string

	err := row.Scan(
		&turn.ID,
		&turn.ChatID,
		&turn.AuthorUserID,
		&turn.QuestionText,
		&turn.AnswerText,
		&turn.ProviderCode,
		&mediaJSON,
		&turn.CreatedSeq,
		&suppressed,
		&settled,
		&turn.CreditCost,
		&turn.QuestionThread.Count,
		&qUsers,
		&qLast,
		&turn.AnswerThread.Count,
		&aUsers,
		&aLast,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning turn row: %w", err)
	}

	turn.Suppressed = suppressed != 0
	turn.Settled = settled != 0

	if mediaJSON.Valid && mediaJSON.String != "" {
		if err := json.Unmarshal([]byte(mediaJSON.String), &turn.Media); err != nil {
			return nil, fmt.Errorf("decoding media: %w", err)
		}
	}
	if err := decodeBadge(&turn.QuestionThread, qUsers, qLast); err != nil {
		return nil, err
	}
	if err := decodeBadge(&turn.AnswerThread, aUsers, aLast); err != nil {
		return nil, err
	}
	if turn.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &turn, nil
}

func decodeBadge(badge *ThreadBadge, users, last sql.NullString) error {
	if users.Valid && users.String != "" {
		if err := json.Unmarshal([]byte(users.String), &badge.UserIDs); err != nil {
			return fmt.Errorf("decoding thread users: %w", err)
		}
	}
	if last.Valid && last.String != "" {
		t, err := time.Parse(time.RFC3339Nano, last.String)
		if err != nil {
			return fmt.Errorf("parsing thread last time: %w", err)
		}
		badge.LastTime = t
	}
	return nil
}
