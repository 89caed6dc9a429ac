package reports

import (
	"context"
	"sort"

	"tally/internal/core"
)

// buildBudgetUsage compares spend per category against configured budgets.
// Categories without a budget are omitted entirely; they are never treated
// as "always over budget" and no ratio is ever computed against a zero
// budget.
func buildBudgetUsage(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	totals := spendByCategory(rd, txns)

	var rows []BudgetUsageRow
	for id, actual := range totals {
		cat, ok := rd.Category(id)
		if !ok || cat.Budget <= 0 {
			continue
		}
		rows = append(rows, BudgetUsageRow{
			CategoryID:  id,
			Category:    cat.Name,
			Budget:      round2(cat.Budget),
			Actual:      round2(actual),
			Utilization: round2(actual / cat.Budget),
			OverBudget:  actual > cat.Budget,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Utilization != rows[j].Utilization {
			return rows[i].Utilization > rows[j].Utilization
		}
		return rows[i].Category < rows[j].Category
	})
	if len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}

	data := make([]any, len(rows))
	for i, r := range rows {
		data[i] = r
	}
	return periodOf(p.Start, p.End), data, nil
}

// buildBudgetTrends emits monthly spend for every budgeted category across
// the full month range, zero-filling months with no spend. Categories
// without a budget still appear when they had spend, with the budget echoed
// as configured (possibly 0) and no ratio computed.
func buildBudgetTrends(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	months := monthsBetween(p.Start, p.End)
	perMonth := spendByCategoryMonth(rd, txns)

	include := make(map[int]bool)
	for _, cat := range rd.Categories() {
		if cat.Budget > 0 {
			include[cat.ID] = true
		}
	}
	for _, byCat := range perMonth {
		for id := range byCat {
			include[id] = true
		}
	}

	ids := make([]int, 0, len(include))
	for id := range include {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, nj := rd.CategoryName(ids[i]), rd.CategoryName(ids[j])
		if ni != nj {
			return ni < nj
		}
		return ids[i] < ids[j]
	})

	var data []any
	for _, id := range ids {
		cat, _ := rd.Category(id)
		for _, month := range months {
			data = append(data, BudgetTrendPoint{
				Month:      month,
				CategoryID: id,
				Category:   rd.CategoryName(id),
				Budget:     round2(cat.Budget),
				Spent:      round2(perMonth[month][id]),
			})
		}
	}
	return periodOf(p.Start, p.End), data, nil
}
