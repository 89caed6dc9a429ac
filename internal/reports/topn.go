package reports

import (
	"context"
	"sort"

	"tally/internal/core"
)

// buildTopTransactions ranks expense transactions by magnitude. Transfers
// are excluded at the transaction level so a card payment never shows up as
// the month's biggest purchase.
func buildTopTransactions(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	var expenses []core.Transaction
	for _, t := range txns {
		if t.Amount >= 0 || rd.IsTransfer(t) {
			continue
		}
		expenses = append(expenses, t)
	}

	// Signed ascending: the most negative amount ranks first.
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Amount < expenses[j].Amount
	})
	if len(expenses) > p.Limit {
		expenses = expenses[:p.Limit]
	}

	data := make([]any, 0, len(expenses))
	for _, t := range expenses {
		category := "Uncategorized"
		if len(t.Splits) > 0 {
			category = rd.CategoryName(rd.ResolveSplit(t.Splits[0], t))
		}
		account := ""
		if a, ok := rd.Account(t.AccountID); ok {
			account = a.DisplayName()
		}
		data = append(data, TopTransactionPoint{
			ID:          t.ID,
			Date:        t.TransactedAt.Format(isoDateLayout),
			Payee:       rd.PayeeName(t),
			Category:    category,
			Account:     account,
			Amount:      round2(t.Amount),
			Description: t.Description,
		})
	}
	return periodOf(p.Start, p.End), data, nil
}
