// Package core defines the domain model and the category resolution rule.
//
// The resolution rule is the one piece of logic that display, filter and
// report code paths must agree on. It lives here, once, and every consumer
// calls through it; totals silently diverge the moment a call site inlines
// its own copy.
package core

import "strings"

// DefaultPaycheckCategoryID is used when no category named "Paycheck" or
// "Salary" exists in the reference data.
const DefaultPaycheckCategoryID = 51

// EffectiveCategoryID applies the category fallback rule:
//  1. explicit categorization on the split wins,
//  2. otherwise the payee's default category,
//  3. otherwise Uncategorized.
//
// payee may be nil when the transaction has none.
func EffectiveCategoryID(s Split, payee *Payee) int {
	if s.CategoryID != UncategorizedID {
		return s.CategoryID
	}
	if payee != nil && payee.CategoryID != UncategorizedID {
		return payee.CategoryID
	}
	return UncategorizedID
}

// RefData is a read-only snapshot of categories, groups, payees and accounts
// for one report computation. Name-derived lookups (transfer categories, the
// paycheck category, the bills group) are resolved once at construction.
type RefData struct {
	categories map[int]Category
	groups     map[int]Group
	payees     map[int]Payee
	accounts   map[string]Account

	transferIDs map[int]bool
	paycheckID  int
	billsGroup  int
}

// NewRefData builds a snapshot. Dangling foreign keys are tolerated; lookups
// against them resolve to the sentinel values rather than failing.
func NewRefData(categories []Category, groups []Group, payees []Payee, accounts []Account) RefData {
	r := RefData{
		categories:  make(map[int]Category, len(categories)),
		groups:      make(map[int]Group, len(groups)),
		payees:      make(map[int]Payee, len(payees)),
		accounts:    make(map[string]Account, len(accounts)),
		transferIDs: make(map[int]bool),
		paycheckID:  DefaultPaycheckCategoryID,
	}
	for _, g := range groups {
		r.groups[g.ID] = g
		if r.billsGroup == 0 && strings.Contains(strings.ToLower(g.Name), "util") {
			r.billsGroup = g.ID
		}
	}
	for _, c := range categories {
		r.categories[c.ID] = c
		if isTransferName(c.Name) {
			r.transferIDs[c.ID] = true
		}
	}
	// Prefer an exact "Paycheck" over "Salary" when both exist.
	for _, name := range []string{"paycheck", "salary"} {
		if id, ok := r.findCategoryByName(name); ok {
			r.paycheckID = id
			break
		}
	}
	for _, p := range payees {
		r.payees[p.ID] = p
	}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

// isTransferName identifies transfer-like categories whose activity is money
// moved between the user's own accounts, not real income or spend.
func isTransferName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "transfer") || lower == "credit card payment"
}

func (r RefData) findCategoryByName(lower string) (int, bool) {
	for id, c := range r.categories {
		if strings.ToLower(c.Name) == lower {
			return id, true
		}
	}
	return 0, false
}

// ResolveSplit returns the effective category of a split within its parent
// transaction, applying the payee fallback.
func (r RefData) ResolveSplit(s Split, t Transaction) int {
	var payee *Payee
	if p, ok := r.payees[t.PayeeID]; ok {
		payee = &p
	}
	return EffectiveCategoryID(s, payee)
}

// Category returns the category for id, if known.
func (r RefData) Category(id int) (Category, bool) {
	c, ok := r.categories[id]
	return c, ok
}

// CategoryName resolves a category id to its display name, falling back to
// "Uncategorized" for the sentinel and for dangling ids.
func (r RefData) CategoryName(id int) string {
	if c, ok := r.categories[id]; ok && id != UncategorizedID {
		return c.Name
	}
	return "Uncategorized"
}

// GroupName resolves the group label for a category id, "Other" when the
// category has no group.
func (r RefData) GroupName(categoryID int) string {
	if c, ok := r.categories[categoryID]; ok {
		if g, ok := r.groups[c.GroupID]; ok {
			return g.Name
		}
	}
	return "Other"
}

// PayeeName returns the payee display name for a transaction, "Unknown" when
// it has none.
func (r RefData) PayeeName(t Transaction) string {
	if p, ok := r.payees[t.PayeeID]; ok {
		return p.Name
	}
	return "Unknown"
}

// Payee returns the payee for id, if known.
func (r RefData) Payee(id int) (Payee, bool) {
	p, ok := r.payees[id]
	return p, ok
}

// Account returns the account for id, if known.
func (r RefData) Account(id string) (Account, bool) {
	a, ok := r.accounts[id]
	return a, ok
}

// Accounts returns all accounts in the snapshot.
func (r RefData) Accounts() []Account {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out
}

// Categories returns all categories in the snapshot.
func (r RefData) Categories() []Category {
	out := make([]Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out
}

// IsTransferCategory reports whether id names a transfer-like category.
func (r RefData) IsTransferCategory(id int) bool {
	return r.transferIDs[id]
}

// IsTransfer reports whether any split of t resolves to a transfer-like
// category. Transactions matching this are excluded from income/expense and
// top-transaction reports to avoid double counting.
func (r RefData) IsTransfer(t Transaction) bool {
	for _, s := range t.Splits {
		if r.transferIDs[r.ResolveSplit(s, t)] {
			return true
		}
	}
	return false
}

// PaycheckCategoryID is the category used by payroll analysis.
func (r RefData) PaycheckCategoryID() int { return r.paycheckID }

// BillsGroupID is the "Bills & Utilities" group id, 0 when absent.
func (r RefData) BillsGroupID() int { return r.billsGroup }

// InBillsGroup reports whether a category belongs to the bills group.
func (r RefData) InBillsGroup(categoryID int) bool {
	if r.billsGroup == 0 {
		return false
	}
	c, ok := r.categories[categoryID]
	return ok && c.GroupID == r.billsGroup
}
