package reports

import (
	"context"
	"math"
	"testing"

	"tally/internal/core"
)

func TestMedian(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{5}, 5},
		{[]float64{1, 3}, 2},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4000, 4000, 4000, 4200}, 4000},
	}
	for i, tc := range cases {
		if got := median(tc.in); got != tc.want {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestPopStdDev(t *testing.T) {
	// Population form: sqrt of the mean squared deviation, not the n-1
	// sample estimator.
	got := popStdDev([]float64{4000, 4000, 4000, 4200})
	if math.Abs(got-86.60254) > 0.001 {
		t.Fatalf("got %v", got)
	}
	if popStdDev([]float64{7, 7, 7}) != 0 {
		t.Fatalf("constant series must have zero deviation")
	}
}

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		newestFirst []float64
		want        string
	}{
		{[]float64{1, 2, 3}, TrendInsufficientData},
		{[]float64{4200, 4000, 4000, 4000}, TrendStable}, // 4100 vs 4000, within 5%
		{[]float64{110, 108, 100, 100}, TrendIncreasing},
		{[]float64{90, 92, 100, 100}, TrendDecreasing},
		{[]float64{100, 100, 100, 100}, TrendStable},
		{[]float64{120, 118, 116, 100, 100, 100}, TrendIncreasing},
	}
	for i, tc := range cases {
		if got := classifyTrend(tc.newestFirst); got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.want)
		}
	}
}

func paycheckTxns() []core.Transaction {
	return []core.Transaction{
		txn("p1", "acc-1", day(2025, 2, 1), 4, 4000, core.Split{CategoryID: 51, Amount: 4000}),
		txn("p2", "acc-1", day(2025, 3, 1), 4, 4000, core.Split{CategoryID: 51, Amount: 4000}),
		txn("p3", "acc-1", day(2025, 4, 1), 4, 4000, core.Split{CategoryID: 51, Amount: 4000}),
		txn("p4", "acc-1", day(2025, 5, 1), 4, 4200, core.Split{CategoryID: 51, Amount: 4200}),
	}
}

func TestPaycheckAnalysisSummary(t *testing.T) {
	e := testEngine(t, paycheckTxns()...)
	out, err := e.Generate(context.Background(), KindPaycheckAnalysis, Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Data) != 1 {
		t.Fatalf("expected single analysis element, got %d", len(out.Data))
	}
	a := out.Data[0].(PaycheckAnalysis)

	s := a.Summary
	if s.TotalCount != 4 || s.AverageAmount != 4050 || s.MedianAmount != 4000 {
		t.Fatalf("summary = %#v", s)
	}
	if s.StdDeviation != 86.6 {
		t.Fatalf("std_deviation = %v", s.StdDeviation)
	}
	if s.MinAmount != 4000 || s.MaxAmount != 4200 || s.TotalIncome != 16200 {
		t.Fatalf("summary = %#v", s)
	}
	if a.Trend != TrendStable {
		t.Fatalf("trend = %q", a.Trend)
	}

	// Newest first.
	if a.Paychecks[0].ID != "p4" || a.Paychecks[3].ID != "p1" {
		t.Fatalf("ordering = %v, %v", a.Paychecks[0].ID, a.Paychecks[3].ID)
	}

	stats, ok := a.ByPayee["Acme Corp"]
	if !ok {
		t.Fatalf("missing payee stats: %v", a.ByPayee)
	}
	if stats.Count != 4 || stats.LastPaycheckDate != "2025-05-01" {
		t.Fatalf("payee stats = %#v", stats)
	}
	if len(a.Anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %#v", a.Anomalies)
	}
}

func TestPaycheckAnomalyAtTwoSigma(t *testing.T) {
	observations := []paycheckObservation{
		{amount: 8000, entry: Paycheck{ID: "p5", Date: "2025-06-01", Amount: 8000, Payee: "Acme Corp"}},
		{amount: 4000, entry: Paycheck{ID: "p4", Date: "2025-05-01", Amount: 4000, Payee: "Acme Corp"}},
		{amount: 4000, entry: Paycheck{ID: "p3", Date: "2025-04-01", Amount: 4000, Payee: "Acme Corp"}},
		{amount: 4000, entry: Paycheck{ID: "p2", Date: "2025-03-01", Amount: 4000, Payee: "Acme Corp"}},
		{amount: 4000, entry: Paycheck{ID: "p1", Date: "2025-02-01", Amount: 4000, Payee: "Acme Corp"}},
	}
	a := analyzePaychecks(observations)
	if len(a.Anomalies) != 1 {
		t.Fatalf("anomalies = %#v", a.Anomalies)
	}
	an := a.Anomalies[0]
	// mean 4800, stddev 1600: the 8000 entry lands exactly on the boundary
	// and must be flagged.
	if an.ID != "p5" || an.DeviationSigma != 2 || an.DifferenceFromAvg != 3200 {
		t.Fatalf("anomaly = %#v", an)
	}
}

func TestPaycheckAnalysisEmpty(t *testing.T) {
	e := testEngine(t)
	out, err := e.Generate(context.Background(), KindPaycheckAnalysis, Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := out.Data[0].(PaycheckAnalysis)
	if a.Summary.TotalCount != 0 || a.Trend != TrendInsufficientData {
		t.Fatalf("empty analysis = %#v", a)
	}
	if a.Paychecks == nil || a.ByPayee == nil || a.Anomalies == nil {
		t.Fatalf("empty analysis must serialize as [] and {}: %#v", a)
	}
}

func TestPaycheckAnalysisSkipsTransfersAndOtherIncome(t *testing.T) {
	e := testEngine(t,
		txn("p1", "acc-1", day(2025, 4, 1), 4, 4000, core.Split{CategoryID: 51, Amount: 4000}),
		// Inflow in a non-paycheck category.
		txn("r1", "acc-1", day(2025, 4, 3), 1, 25, core.Split{CategoryID: 10, Amount: 25}),
		// Inflow on a transfer transaction.
		txn("x1", "acc-1", day(2025, 4, 5), 5, 500, core.Split{CategoryID: 51, Amount: 1000}, core.Split{CategoryID: 20, Amount: -500}),
	)
	out, err := e.Generate(context.Background(), KindPaycheckAnalysis, Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := out.Data[0].(PaycheckAnalysis)
	if len(a.Paychecks) != 1 || a.Paychecks[0].ID != "p1" {
		t.Fatalf("paychecks = %#v", a.Paychecks)
	}
}

func TestTopTransactions(t *testing.T) {
	e := testEngine(t,
		txn("t1", "acc-1", day(2025, 2, 1), 1, -300, core.Split{CategoryID: 10, Amount: -300}),
		txn("t2", "acc-cc", day(2025, 2, 2), 1, -50, core.Split{CategoryID: 13, Amount: -50}),
		txn("t3", "acc-1", day(2025, 2, 3), 1, -120, core.Split{CategoryID: 10, Amount: -120}),
		// Transfers and inflows never rank.
		txn("t4", "acc-1", day(2025, 2, 4), 5, -900, core.Split{Amount: -900}),
		txn("t5", "acc-1", day(2025, 2, 5), 4, 4000, core.Split{CategoryID: 51, Amount: 4000}),
	)
	out, err := e.Generate(context.Background(), KindTopTransactions, Params{
		Start: day(2025, 2, 1), End: day(2025, 2, 28), Limit: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Data) != 2 {
		t.Fatalf("expected 2 points, got %d", len(out.Data))
	}
	first := out.Data[0].(TopTransactionPoint)
	if first.ID != "t1" || first.Amount != -300 || first.Category != "Groceries" {
		t.Fatalf("first = %#v", first)
	}
	second := out.Data[1].(TopTransactionPoint)
	if second.ID != "t3" {
		t.Fatalf("second = %#v", second)
	}
	if first.Payee != "Megamart" {
		t.Fatalf("payee = %q", first.Payee)
	}
}

func TestTopTransactionsAccountDisplayName(t *testing.T) {
	e := testEngine(t,
		txn("t1", "acc-cc", day(2025, 2, 2), 1, -50, core.Split{CategoryID: 13, Amount: -50}),
	)
	out, err := e.Generate(context.Background(), KindTopTransactions, Params{
		Start: day(2025, 2, 1), End: day(2025, 2, 28),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := out.Data[0].(TopTransactionPoint); p.Account != "Blue Card" {
		t.Fatalf("account = %q", p.Account)
	}
}
