// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - Chat: one conversation between a company's users and a brain
//   - Turn: one question/answer exchange; created_seq is strictly increasing
//     per chat and answers are immutable once settled
//   - ReplyEntry: append-only side-thread messages hanging off a turn
//   - LedgerEntry: per-company credit usage against a plan limit
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for tests.
//
// # Concurrency
//
// ReserveCredits performs its balance check and charge in a single
// conditional UPDATE, so concurrent admissions can never overspend the
// budget regardless of interleaving. CreateTurn assigns created_seq inside
// the insert statement for the same reason.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateChat: chat already exists
//   - ErrChatArchived: write targeted an archived chat
//   - ErrTurnSettled: answer was already written
//
// All methods accept context.Context for cancellation support.
package store
