// ABOUTME: Admission control against the per-company message-credit budget
// ABOUTME: Admit is one atomic check-and-update; no provider call happens before it

package credit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brainwave/chat-gateway/internal/provider"
	"github.com/brainwave/chat-gateway/internal/store"
)

// ExceededError reports a rejected admission. It is user-visible: the caller
// clears the pending input without dispatching anything.
type ExceededError struct {
	CompanyID string
	Used      int64
	Limit     int64
	Cost      int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("credit limit exceeded for company %s: used %d of %d, cost %d",
		e.CompanyID, e.Used, e.Limit, e.Cost)
}

// Decision is the outcome of an admission check
type Decision struct {
	Accepted bool
	Used     int64
	Limit    int64
}

// LedgerStore defines what the ledger needs from storage
type LedgerStore interface {
	EnsureLedger(ctx context.Context, companyID string, limit int64) error
	ReserveCredits(ctx context.Context, companyID string, cost int64) (*store.LedgerEntry, bool, error)
	ResetLedger(ctx context.Context, companyID string, newLimit int64) error
}

// Ledger performs synchronous admission control for message submissions.
// The check and charge run as one logical step under mu, so two
// near-simultaneous submissions can never both pass a stale check.
type Ledger struct {
	mu           sync.Mutex
	store        LedgerStore
	costs        *CostTable
	defaultLimit int64
	logger       *slog.Logger
}

// NewLedger creates a Ledger. Companies without a ledger row are initialized
// with defaultLimit on first admission. Pass nil logger for default.
func NewLedger(s LedgerStore, costs *CostTable, defaultLimit int64, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:        s,
		costs:        costs,
		defaultLimit: defaultLimit,
		logger:       logger.With("component", "credit"),
	}
}

// Admit charges cost against the company's budget before dispatch.
// used + cost == limit is accepted. When the budget doesn't cover the cost
// it returns a Decision with Accepted=false and an *ExceededError.
//
// A storage failure is fatal to this single request and is never retried
// here: a retry could double-charge.
func (l *Ledger) Admit(ctx context.Context, companyID string, cost int64) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.EnsureLedger(ctx, companyID, l.defaultLimit); err != nil {
		return Decision{}, fmt.Errorf("ensuring ledger: %w", err)
	}

	entry, accepted, err := l.store.ReserveCredits(ctx, companyID, cost)
	if err != nil {
		return Decision{}, fmt.Errorf("reserving credits: %w", err)
	}

	decision := Decision{Accepted: accepted, Used: entry.Used, Limit: entry.Limit}
	if !accepted {
		l.logger.Info("admission rejected",
			"company_id", companyID,
			"cost", cost,
			"used", entry.Used,
			"limit", entry.Limit)
		return decision, &ExceededError{
			CompanyID: companyID,
			Used:      entry.Used,
			Limit:     entry.Limit,
			Cost:      cost,
		}
	}

	l.logger.Debug("admission accepted",
		"company_id", companyID,
		"cost", cost,
		"used", entry.Used,
		"limit", entry.Limit)
	return decision, nil
}

// Renew applies an external plan-renewal event: used returns to zero and the
// limit is replaced. This is the only path that decreases used.
func (l *Ledger) Renew(ctx context.Context, companyID string, newLimit int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.ResetLedger(ctx, companyID, newLimit)
}

// CostFor returns the credit cost of a routed request
func (l *Ledger) CostFor(decision provider.Decision) int64 {
	return l.costs.Cost(decision)
}
