// Package memory implements an in-memory ledger store for demos and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Store holds the ledger in memory. It applies the same filter semantics as
// the SQLite store so the engine produces identical output over either.
type Store struct {
	mu           sync.Mutex
	categories   []core.Category
	groups       []core.Group
	payees       []core.Payee
	accounts     map[string]core.Account
	transactions []core.Transaction
}

var _ ledger.Reader = (*Store)(nil)

// New creates a store seeded with reference data.
func New(categories []core.Category, groups []core.Group, payees []core.Payee, accounts []core.Account) *Store {
	s := &Store{
		categories: append([]core.Category(nil), categories...),
		groups:     append([]core.Group(nil), groups...),
		payees:     append([]core.Payee(nil), payees...),
		accounts:   make(map[string]core.Account, len(accounts)),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

// Add validates and stores transactions.
func (s *Store) Add(transactions ...core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range transactions {
		if err := t.Validate(); err != nil {
			return err
		}
		s.transactions = append(s.transactions, t)
	}
	return nil
}

// QueryTransactions implements ledger.Reader.
func (s *Store) QueryTransactions(_ context.Context, f ledger.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.transactions {
		if f.Matches(t, s.accounts[t.AccountID]) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactedAt.Before(out[j].TransactedAt)
	})
	return out, nil
}

// RefData implements ledger.Reader.
func (s *Store) RefData(_ context.Context) (core.RefData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	return core.NewRefData(s.categories, s.groups, s.payees, accounts), nil
}
