package reports

import (
	"context"
	"sort"

	"tally/internal/core"
)

// spendByCategory sums absolute expense split amounts per resolved category.
// Transfer-like splits are skipped; money moved between the user's own
// accounts is not spend.
func spendByCategory(rd core.RefData, txns []core.Transaction) map[int]float64 {
	totals := make(map[int]float64)
	for _, t := range txns {
		for _, s := range t.Splits {
			if !s.IsExpense() {
				continue
			}
			id := rd.ResolveSplit(s, t)
			if rd.IsTransferCategory(id) {
				continue
			}
			totals[id] += -s.Amount
		}
	}
	return totals
}

// spendByCategoryMonth is spendByCategory bucketed by calendar month.
func spendByCategoryMonth(rd core.RefData, txns []core.Transaction) map[string]map[int]float64 {
	buckets := make(map[string]map[int]float64)
	for _, t := range txns {
		month := monthKey(t.TransactedAt)
		for _, s := range t.Splits {
			if !s.IsExpense() {
				continue
			}
			id := rd.ResolveSplit(s, t)
			if rd.IsTransferCategory(id) {
				continue
			}
			if buckets[month] == nil {
				buckets[month] = make(map[int]float64)
			}
			buckets[month][id] += -s.Amount
		}
	}
	return buckets
}

type categoryTotal struct {
	id    int
	total float64
}

// rankCategories orders totals descending, breaking ties by category name so
// equal spends produce stable output.
func rankCategories(rd core.RefData, totals map[int]float64) []categoryTotal {
	ranked := make([]categoryTotal, 0, len(totals))
	for id, total := range totals {
		ranked = append(ranked, categoryTotal{id: id, total: total})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return rd.CategoryName(ranked[i].id) < rd.CategoryName(ranked[j].id)
	})
	return ranked
}

// bucketTopN keeps the limit highest-spend categories for one month label
// and collapses the remainder into a synthetic "Other" entry.
func bucketTopN(rd core.RefData, month string, ranked []categoryTotal, limit int) []any {
	var out []any
	var otherTotal float64
	for i, ct := range ranked {
		if i < limit {
			out = append(out, CategoryTrendPoint{
				Month:      month,
				Category:   rd.CategoryName(ct.id),
				CategoryID: ct.id,
				GroupName:  rd.GroupName(ct.id),
				Total:      round2(ct.total),
			})
			continue
		}
		otherTotal += ct.total
	}
	if otherTotal > 0 {
		out = append(out, CategoryTrendPoint{
			Month:      month,
			Category:   "Other",
			CategoryID: core.OtherBucketID,
			GroupName:  "Other",
			Total:      round2(otherTotal),
		})
	}
	return out
}

// buildCategoryTrends ranks spend per resolved category. Global mode emits
// one point per category for the whole range, labeled with the range's end
// month; per-month mode re-ranks within each calendar month, each with its
// own overflow bucket.
func buildCategoryTrends(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	var data []any
	switch p.Mode {
	case ModeGlobal:
		// An open-ended range labels the points with the current month.
		end := p.End
		if end.IsZero() {
			end = e.now()
		}
		ranked := rankCategories(rd, spendByCategory(rd, txns))
		data = bucketTopN(rd, monthKey(end), ranked, p.Limit)
	default: // per_month
		perMonth := spendByCategoryMonth(rd, txns)
		for _, month := range monthsBetween(p.Start, p.End) {
			totals := perMonth[month]
			if len(totals) == 0 {
				continue
			}
			data = append(data, bucketTopN(rd, month, rankCategories(rd, totals), p.Limit)...)
		}
	}
	return periodOf(p.Start, p.End), data, nil
}

// buildIncomeVsExpenses sums inflows and outflows per calendar month,
// zero-filling every month in the range. Transactions containing a
// transfer-like split are excluded entirely to avoid counting money moved
// between the user's own accounts.
func buildIncomeVsExpenses(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	income := make(map[string]float64)
	expenses := make(map[string]float64)
	for _, t := range txns {
		if rd.IsTransfer(t) {
			continue
		}
		month := monthKey(t.TransactedAt)
		for _, s := range t.Splits {
			switch {
			case s.IsIncome():
				income[month] += s.Amount
			case s.IsExpense():
				expenses[month] += -s.Amount
			}
		}
	}

	var data []any
	for _, month := range monthsBetween(p.Start, p.End) {
		data = append(data, IncomeExpensePoint{
			Month:    month,
			Income:   round2(income[month]),
			Expenses: round2(expenses[month]),
			Net:      round2(income[month] - expenses[month]),
		})
	}
	return periodOf(p.Start, p.End), data, nil
}

// netWorthMonthlyGrowth is the flat monthly growth assumed when projecting
// current balances backward. The history is an approximation anchored to
// today's balances, not a reconstruction from historical ledger data.
const netWorthMonthlyGrowth = 0.005

// buildNetWorthHistory projects the sum of current account balances
// backward across the requested months.
func buildNetWorthHistory(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	months := monthsBetween(p.Start, p.End)
	if len(months) == 0 {
		return periodOf(p.Start, p.End), nil, nil
	}

	var current float64
	for _, a := range rd.Accounts() {
		current += a.Balance
	}

	values := make([]float64, len(months))
	values[len(months)-1] = current
	for i := len(months) - 2; i >= 0; i-- {
		values[i] = values[i+1] / (1 + netWorthMonthlyGrowth)
	}

	data := make([]any, len(months))
	for i, month := range months {
		data[i] = NetWorthPoint{Month: month, NetWorth: round2(values[i])}
	}
	return periodOf(p.Start, p.End), data, nil
}
