package reports

import (
	"context"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ledger/memory"
)

func testClock() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func testStore(t *testing.T, txns ...core.Transaction) *memory.Store {
	t.Helper()
	s := memory.New(
		[]core.Category{
			{ID: 10, Name: "Groceries", GroupID: 1, Budget: 500},
			{ID: 13, Name: "Dining Out", GroupID: 1, Budget: 200},
			{ID: 11, Name: "Electric", GroupID: 2},
			{ID: 12, Name: "Internet", GroupID: 2},
			{ID: 14, Name: "Shopping", GroupID: 1},
			{ID: 20, Name: "Transfer"},
			{ID: 21, Name: "Credit Card Payment"},
			{ID: 51, Name: "Paycheck", GroupID: 3},
		},
		[]core.Group{
			{ID: 1, Name: "Food & Dining"},
			{ID: 2, Name: "Bills & Utilities"},
			{ID: 3, Name: "Income"},
		},
		[]core.Payee{
			{ID: 1, Name: "Megamart", CategoryID: 10},
			{ID: 2, Name: "Power Co", CategoryID: 11},
			{ID: 3, Name: "FiberNet", CategoryID: 12},
			{ID: 4, Name: "Acme Corp", CategoryID: 51},
			{ID: 5, Name: "Bank", CategoryID: 20},
		},
		[]core.Account{
			{ID: "acc-1", Name: "Checking", Type: core.AccountBank, Balance: 5000},
			{ID: "acc-cc", Name: "Card", AltName: "Blue Card", Type: core.AccountCreditCard, Balance: -200},
			{ID: "inv-1", Name: "Brokerage", Type: core.AccountInvestment, Balance: 20000},
			{ID: "hid-1", Name: "Old", Type: core.AccountBank, Hidden: true, Balance: 0},
		},
	)
	if err := s.Add(txns...); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func testEngine(t *testing.T, txns ...core.Transaction) *Engine {
	t.Helper()
	return NewEngineAt(testStore(t, txns...), testClock)
}

func txn(id, account string, day time.Time, payee int, amount float64, splits ...core.Split) core.Transaction {
	if len(splits) == 0 {
		splits = []core.Split{{Amount: amount}}
	}
	return core.Transaction{
		ID:           id,
		AccountID:    account,
		Amount:       amount,
		TransactedAt: day,
		PayeeID:      payee,
		Splits:       splits,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildersCoverEveryKind(t *testing.T) {
	for _, k := range Kinds() {
		if builders[k] == nil {
			t.Fatalf("no builder registered for %s", k)
		}
	}
	if len(builders) != len(Kinds()) {
		t.Fatalf("builders has %d entries, Kinds has %d", len(builders), len(Kinds()))
	}
}

func TestGenerateUnknownKind(t *testing.T) {
	e := testEngine(t)
	out, err := e.Generate(context.Background(), Kind("nonsense"), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ReportKind != "nonsense" {
		t.Fatalf("report_kind = %q", out.ReportKind)
	}
	if out.Data == nil || len(out.Data) != 0 {
		t.Fatalf("expected empty data slice, got %#v", out.Data)
	}
}

func TestGenerateEmptyLedgerAllKinds(t *testing.T) {
	e := testEngine(t)
	p := Params{Start: day(2025, 1, 1), End: day(2025, 3, 31)}
	for _, k := range Kinds() {
		out, err := e.Generate(context.Background(), k, p)
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		if out.Data == nil {
			t.Fatalf("%s: data is nil", k)
		}
		if out.ReportKind != string(k) {
			t.Fatalf("%s: report_kind = %q", k, out.ReportKind)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	now := testClock()

	p := applyDefaults(KindTopTransactions, Params{}, now)
	if p.Limit != 5 {
		t.Fatalf("top_transactions limit = %d, want 5", p.Limit)
	}
	p = applyDefaults(KindCategoryTrends, Params{}, now)
	if p.Limit != 10 || p.Mode != ModePerMonth {
		t.Fatalf("category_trends defaults = limit %d mode %q", p.Limit, p.Mode)
	}
	if len(p.ExcludeAccountTypes) != 1 || p.ExcludeAccountTypes[0] != core.AccountInvestment {
		t.Fatalf("default exclusion = %v", p.ExcludeAccountTypes)
	}

	// Explicit empty slice disables exclusion.
	p = applyDefaults(KindCategoryTrends, Params{ExcludeAccountTypes: []core.AccountType{}}, now)
	if len(p.ExcludeAccountTypes) != 0 {
		t.Fatalf("explicit empty exclusion overwritten: %v", p.ExcludeAccountTypes)
	}

	// upcoming_bills restricts by group, not account type.
	p = applyDefaults(KindUpcomingBills, Params{}, now)
	if p.ExcludeAccountTypes != nil {
		t.Fatalf("upcoming_bills exclusion = %v", p.ExcludeAccountTypes)
	}
	if p.LookforwardDays != 30 {
		t.Fatalf("lookforward = %d", p.LookforwardDays)
	}

	// paycheck_analysis derives its range from the lookback window.
	p = applyDefaults(KindPaycheckAnalysis, Params{}, now)
	if !p.End.Equal(now) || !p.Start.Equal(now.AddDate(0, -6, 0)) {
		t.Fatalf("paycheck range = %v .. %v", p.Start, p.End)
	}

	// income_vs_expenses snaps to month boundaries.
	p = applyDefaults(KindIncomeVsExpenses, Params{Start: day(2025, 1, 15), End: day(2025, 3, 10)}, now)
	if !p.Start.Equal(day(2025, 1, 1)) {
		t.Fatalf("start not snapped: %v", p.Start)
	}
	if p.End.Month() != time.March || p.End.Day() != 31 {
		t.Fatalf("end not snapped: %v", p.End)
	}
}

func TestGenerateExcludesInvestmentByDefault(t *testing.T) {
	e := testEngine(t,
		txn("t1", "acc-1", day(2025, 2, 3), 1, -50, core.Split{Amount: -50}),
		txn("t2", "inv-1", day(2025, 2, 4), 1, -999, core.Split{Amount: -999}),
	)
	out, err := e.Generate(context.Background(), KindTopTransactions, Params{
		Start: day(2025, 2, 1), End: day(2025, 2, 28),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Data) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(out.Data))
	}
	if out.Data[0].(TopTransactionPoint).ID != "t1" {
		t.Fatalf("wrong transaction: %#v", out.Data[0])
	}
}
