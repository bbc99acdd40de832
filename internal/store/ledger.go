// ABOUTME: SQLite implementation for the per-company credit ledger
// ABOUTME: ReserveCredits is a single conditional update so checks never go stale

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureLedger creates a ledger row for the company if one doesn't exist.
// An existing row is left untouched.
func (s *SQLiteStore) EnsureLedger(ctx context.Context, companyID string, limit int64) error {
	query := `
		INSERT INTO credit_ledger (company_id, credit_limit, used, updated_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (company_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, companyID, limit, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ensuring ledger: %w", err)
	}
	return nil
}

// GetLedger returns the ledger entry for a company
func (s *SQLiteStore) GetLedger(ctx context.Context, companyID string) (*LedgerEntry, error) {
	query := `SELECT company_id, credit_limit, used, updated_at FROM credit_ledger WHERE company_id = ?`

	var entry LedgerEntry
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, companyID).Scan(
		&entry.CompanyID,
		&entry.Limit,
		&entry.Used,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	if entry.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &entry, nil
}

// ReserveCredits atomically charges cost against the company's budget.
// The check and the update are one statement: the charge only lands when
// used + cost <= limit, so two near-simultaneous reservations can never both
// pass a stale check. Returns the post-attempt entry and whether the charge
// was accepted. used + cost == limit is accepted.
func (s *SQLiteStore) ReserveCredits(ctx context.Context, companyID string, cost int64) (*LedgerEntry, bool, error) {
	query := `
		UPDATE credit_ledger
		SET used = used + ?, updated_at = ?
		WHERE company_id = ? AND used + ? <= credit_limit
	`
	result, err := s.db.ExecContext(ctx, query,
		cost,
		time.Now().UTC().Format(time.RFC3339Nano),
		companyID,
		cost,
	)
	if err != nil {
		return nil, false, fmt.Errorf("reserving credits: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("getting rows affected: %w", err)
	}

	entry, err := s.GetLedger(ctx, companyID)
	if err != nil {
		return nil, false, err
	}

	accepted := n > 0
	s.logger.Debug("credit reservation",
		"company_id", companyID,
		"cost", cost,
		"accepted", accepted,
		"used", entry.Used,
		"limit", entry.Limit)
	return entry, accepted, nil
}

// ResetLedger applies an external renewal event: used returns to zero and the
// limit is replaced. This is the only path that decreases used.
func (s *SQLiteStore) ResetLedger(ctx context.Context, companyID string, newLimit int64) error {
	query := `
		UPDATE credit_ledger
		SET credit_limit = ?, used = 0, updated_at = ?
		WHERE company_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, newLimit, time.Now().UTC().Format(time.RFC3339Nano), companyID)
	if err != nil {
		return fmt.Errorf("resetting ledger: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	s.logger.Info("ledger reset", "company_id", companyID, "limit", newLimit)
	return nil
}
