// Package ledger defines the read-only port through which the reporting
// engine consumes transaction data. The same engine code path runs against
// the SQLite store or an in-memory fixture; only the Reader changes.
package ledger

import (
	"context"
	"time"

	"tally/internal/core"
)

// Filter narrows a transaction query. Zero Start/End mean unbounded on that
// side; both bounds are inclusive. Hidden accounts are excluded unless
// IncludeHidden is set.
type Filter struct {
	Start               time.Time
	End                 time.Time
	ExcludeAccountTypes []core.AccountType
	IncludeHidden       bool
}

// Matches applies the filter to a single transaction given its account.
// Both ledger implementations route through this so the engine sees
// identical slices regardless of origin.
func (f Filter) Matches(t core.Transaction, account core.Account) bool {
	if t.TransactedAt.IsZero() {
		return false
	}
	if !f.Start.IsZero() && t.TransactedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && t.TransactedAt.After(f.End) {
		return false
	}
	if account.Hidden && !f.IncludeHidden {
		return false
	}
	for _, at := range f.ExcludeAccountTypes {
		if account.Type == at {
			return false
		}
	}
	return true
}

// Reader supplies transactions and reference data to the engine. It is never
// mutated by report computations; a facade failure propagates to the caller
// unmodified, retries belong to the implementation.
type Reader interface {
	// QueryTransactions returns all transactions matching the filter,
	// ordered by transacted time ascending.
	QueryTransactions(ctx context.Context, f Filter) ([]core.Transaction, error)

	// RefData returns a read-only snapshot of categories, groups, payees
	// and accounts.
	RefData(ctx context.Context) (core.RefData, error)
}
