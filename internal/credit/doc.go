// Package credit enforces the per-company message-credit budget.
//
// Every submission is charged before any provider work is dispatched. The
// charge is synchronous and atomic: Ledger.Admit holds a mutex and delegates
// to a single conditional UPDATE in the store, so concurrent submissions from
// the same company can never jointly overspend the limit.
//
// Spending the budget exactly to the limit is allowed; the first charge that
// would push usage past the limit is rejected with ExceededError and nothing
// is dispatched for that turn.
//
// Costs are resolved per routing decision by CostTable. Provider-code costs
// may be overridden from config; pro-agent task costs are fixed.
package credit
