package core

import (
	"testing"
	"time"
)

func TestEffectiveCategoryID(t *testing.T) {
	payee := &Payee{ID: 7, Name: "Power Co", CategoryID: 12}
	uncategorizedPayee := &Payee{ID: 8, Name: "Mystery", CategoryID: UncategorizedID}

	tests := []struct {
		name  string
		split Split
		payee *Payee
		want  int
	}{
		{
			name:  "explicit categorization wins",
			split: Split{CategoryID: 3, Amount: -10},
			payee: payee,
			want:  3,
		},
		{
			name:  "uncategorized split falls back to payee default",
			split: Split{CategoryID: UncategorizedID, Amount: -10},
			payee: payee,
			want:  12,
		},
		{
			name:  "uncategorized split and uncategorized payee",
			split: Split{CategoryID: UncategorizedID, Amount: -10},
			payee: uncategorizedPayee,
			want:  UncategorizedID,
		},
		{
			name:  "no payee at all",
			split: Split{CategoryID: UncategorizedID, Amount: -10},
			payee: nil,
			want:  UncategorizedID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveCategoryID(tt.split, tt.payee)
			if got != tt.want {
				t.Errorf("EffectiveCategoryID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func testRefData() RefData {
	categories := []Category{
		{ID: 10, Name: "Groceries", GroupID: 1, Budget: 500},
		{ID: 11, Name: "Electric", GroupID: 2},
		{ID: 12, Name: "Internet", GroupID: 2},
		{ID: 20, Name: "Transfer"},
		{ID: 21, Name: "Credit Card Payment"},
		{ID: 51, Name: "Paycheck", GroupID: 3},
	}
	groups := []Group{
		{ID: 1, Name: "Food & Dining"},
		{ID: 2, Name: "Bills & Utilities"},
		{ID: 3, Name: "Income"},
	}
	payees := []Payee{
		{ID: 7, Name: "Power Co", CategoryID: 11},
		{ID: 9, Name: "Bank", CategoryID: 20},
	}
	accounts := []Account{
		{ID: "acc-1", Name: "Checking", Type: AccountBank, Balance: 1000},
	}
	return NewRefData(categories, groups, payees, accounts)
}

func TestRefDataResolveSplit(t *testing.T) {
	rd := testRefData()
	txn := Transaction{
		ID:           "t1",
		AccountID:    "acc-1",
		Amount:       -80,
		TransactedAt: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		PayeeID:      7,
		Splits:       []Split{{CategoryID: UncategorizedID, Amount: -80}},
	}

	if got := rd.ResolveSplit(txn.Splits[0], txn); got != 11 {
		t.Fatalf("ResolveSplit() = %d, want payee default 11", got)
	}

	// The resolved id must agree wherever it is consumed: as a display name,
	// as a group label, and as a filter key.
	if name := rd.CategoryName(rd.ResolveSplit(txn.Splits[0], txn)); name != "Electric" {
		t.Errorf("CategoryName = %q, want Electric", name)
	}
	if gn := rd.GroupName(rd.ResolveSplit(txn.Splits[0], txn)); gn != "Bills & Utilities" {
		t.Errorf("GroupName = %q, want Bills & Utilities", gn)
	}
	if !rd.InBillsGroup(rd.ResolveSplit(txn.Splits[0], txn)) {
		t.Error("InBillsGroup = false, want true for resolved category")
	}
}

func TestRefDataTransferDetection(t *testing.T) {
	rd := testRefData()
	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		txn  Transaction
		want bool
	}{
		{
			name: "explicit transfer split",
			txn: Transaction{ID: "t1", Amount: -50, TransactedAt: base,
				Splits: []Split{{CategoryID: 20, Amount: -50}}},
			want: true,
		},
		{
			name: "credit card payment split",
			txn: Transaction{ID: "t2", Amount: -50, TransactedAt: base,
				Splits: []Split{{CategoryID: 21, Amount: -50}}},
			want: true,
		},
		{
			name: "uncategorized split with transfer payee",
			txn: Transaction{ID: "t3", Amount: -50, TransactedAt: base, PayeeID: 9,
				Splits: []Split{{CategoryID: UncategorizedID, Amount: -50}}},
			want: true,
		},
		{
			name: "plain expense",
			txn: Transaction{ID: "t4", Amount: -50, TransactedAt: base,
				Splits: []Split{{CategoryID: 10, Amount: -50}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rd.IsTransfer(tt.txn); got != tt.want {
				t.Errorf("IsTransfer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefDataNameLookups(t *testing.T) {
	rd := testRefData()

	if got := rd.CategoryName(999); got != "Uncategorized" {
		t.Errorf("dangling category id resolved to %q, want Uncategorized", got)
	}
	if got := rd.CategoryName(UncategorizedID); got != "Uncategorized" {
		t.Errorf("sentinel category resolved to %q, want Uncategorized", got)
	}
	if got := rd.GroupName(999); got != "Other" {
		t.Errorf("dangling group resolved to %q, want Other", got)
	}
	if got := rd.PaycheckCategoryID(); got != 51 {
		t.Errorf("PaycheckCategoryID = %d, want 51", got)
	}
	if got := rd.PayeeName(Transaction{PayeeID: 12345}); got != "Unknown" {
		t.Errorf("dangling payee resolved to %q, want Unknown", got)
	}
}

func TestRefDataPaycheckFallback(t *testing.T) {
	rd := NewRefData([]Category{{ID: 1, Name: "Groceries"}}, nil, nil, nil)
	if got := rd.PaycheckCategoryID(); got != DefaultPaycheckCategoryID {
		t.Errorf("PaycheckCategoryID = %d, want default %d", got, DefaultPaycheckCategoryID)
	}
}
