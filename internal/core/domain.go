package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// AccountType tags what kind of account a transaction belongs to.
// Reports that exclude investment activity filter on this tag.
type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCreditCard AccountType = "credit_card"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"
	AccountOther      AccountType = "other"
)

// UncategorizedID is the reserved sentinel category. It is not a real user
// category; splits and payees carrying it fall through the resolution rule.
const UncategorizedID = 0

// OtherBucketID labels the synthetic overflow entry produced by top-N
// bucketing in trend reports.
const OtherBucketID = -1

type (
	// Category is immutable reference data for the duration of a report
	// computation. Budget 0 means no budget is configured.
	Category struct {
		ID      int
		Name    string
		GroupID int
		Budget  float64
	}

	// Group is an ordered collection of categories, used only to label
	// trend output.
	Group struct {
		ID   int
		Name string
	}

	// Payee carries the fallback category for uncategorized splits.
	Payee struct {
		ID         int
		Name       string
		CategoryID int
	}

	// Account holds display metadata and the current running balance.
	Account struct {
		ID       string
		Name     string
		AltName  string
		Currency string
		Type     AccountType
		Hidden   bool
		Balance  float64
	}

	// Split attributes a portion of a transaction's amount to one category.
	Split struct {
		CategoryID int
		Amount     float64
	}

	// Transaction is a signed ledger entry. Positive amounts are inflows.
	// PayeeID 0 means no payee.
	Transaction struct {
		ID           string
		AccountID    string
		Amount       float64
		TransactedAt time.Time
		PayeeID      int
		Description  string
		Splits       []Split
	}
)

var (
	ErrEmptyID       = errors.New("empty transaction id")
	ErrNoSplits      = errors.New("transaction has no splits")
	ErrSplitMismatch = errors.New("splits do not sum to transaction amount")
	ErrZeroDate      = errors.New("transaction date cannot be zero")
)

// splitDriftTolerance absorbs floating-point drift from ledger producers.
// Reports never reject a transaction over a stray cent.
const splitDriftTolerance = 0.011

// DisplayName prefers the user-assigned alternative name over the
// provider-supplied one.
func (a Account) DisplayName() string {
	if a.AltName != "" {
		return a.AltName
	}
	return a.Name
}

// Validate checks producer-side invariants. The reporting engine itself never
// calls this; it is used by ledger stores when accepting data.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.TransactedAt.IsZero() {
		return ErrZeroDate
	}
	if len(t.Splits) == 0 {
		return ErrNoSplits
	}
	var sum float64
	for _, s := range t.Splits {
		sum += s.Amount
	}
	if math.Abs(sum-t.Amount) > splitDriftTolerance {
		return ErrSplitMismatch
	}
	return nil
}

// IsExpense reports whether the split carries an outflow.
func (s Split) IsExpense() bool { return s.Amount < 0 }

// IsIncome reports whether the split carries an inflow.
func (s Split) IsIncome() bool { return s.Amount > 0 }
