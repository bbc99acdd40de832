// ABOUTME: SQLite implementation for append-only reply threads
// ABOUTME: Appends entries and maintains the aggregated per-turn badge columns

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// AppendReply records one reply-thread entry and updates the turn's badge
// columns in the same transaction. Entries are never mutated afterwards.
// A zero CreatedAt is filled in with the current time.
// Returns the updated badge for the affected side.
func (s *SQLiteStore) AppendReply(ctx context.Context, entry *ReplyEntry) (*ThreadBadge, error) {
	if entry.Side != ThreadSideQuestion && entry.Side != ThreadSideAnswer {
		return nil, fmt.Errorf("invalid thread side %q", entry.Side)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := `
		INSERT INTO reply_threads (id, turn_id, side, sender_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insert,
		entry.ID,
		entry.TurnID,
		entry.Side,
		entry.SenderID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting reply: %w", err)
	}

	countCol, usersCol, lastCol := "q_reply_count", "q_reply_users", "q_reply_last"
	if entry.Side == ThreadSideAnswer {
		countCol, usersCol, lastCol = "a_reply_count", "a_reply_users", "a_reply_last"
	}

	var count int
	var users sql.NullString
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s, %s FROM turns WHERE id = ?`, countCol, usersCol),
		entry.TurnID)
	if err := row.Scan(&count, &users); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading thread badge: %w", err)
	}

	var userIDs []string
	if users.Valid && users.String != "" {
		if err := json.Unmarshal([]byte(users.String), &userIDs); err != nil {
			return nil, fmt.Errorf("decoding thread users: %w", err)
		}
	}
	if !slices.Contains(userIDs, entry.SenderID) {
		userIDs = append(userIDs, entry.SenderID)
	}
	encoded, err := json.Marshal(userIDs)
	if err != nil {
		return nil, fmt.Errorf("encoding thread users: %w", err)
	}

	badge := &ThreadBadge{
		Count:    count + 1,
		UserIDs:  userIDs,
		LastTime: entry.CreatedAt,
	}

	update := fmt.Sprintf(`UPDATE turns SET %s = ?, %s = ?, %s = ? WHERE id = ?`,
		countCol, usersCol, lastCol)
	if _, err := tx.ExecContext(ctx, update,
		badge.Count,
		string(encoded),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.TurnID,
	); err != nil {
		return nil, fmt.Errorf("updating thread badge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reply: %w", err)
	}

	s.logger.Debug("reply appended",
		"turn_id", entry.TurnID,
		"side", entry.Side,
		"count", badge.Count)
	return badge, nil
}

// ListReplies returns all entries of a turn's side thread in append order
func (s *SQLiteStore) ListReplies(ctx context.Context, turnID, side string) ([]*ReplyEntry, error) {
	query := `
		SELECT id, turn_id, side, sender_id, created_at
		FROM reply_threads
		WHERE turn_id = ? AND side = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, turnID, side)
	if err != nil {
		return nil, fmt.Errorf("querying replies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*ReplyEntry
	for rows.Next() {
		var entry ReplyEntry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.TurnID, &entry.Side, &entry.SenderID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning reply row: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reply rows: %w", err)
	}
	return entries, nil
}
