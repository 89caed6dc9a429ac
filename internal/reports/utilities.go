package reports

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"tally/internal/core"
	"tally/internal/ledger"
)

// utilityCategoryNames is the fixed set of categories the utilities report
// covers. Housing costs (mortgage, rent) that share the bills group are
// deliberately not utilities.
var utilityCategoryNames = []string{
	"Electric",
	"Gas",
	"Water",
	"Internet",
	"Mobile Phone",
	"TV/Streaming",
}

// utilityCategoryIDs resolves the fixed name set against the snapshot.
func utilityCategoryIDs(rd core.RefData) map[int]bool {
	ids := make(map[int]bool, len(utilityCategoryNames))
	for _, cat := range rd.Categories() {
		for _, name := range utilityCategoryNames {
			if strings.EqualFold(cat.Name, name) {
				ids[cat.ID] = true
			}
		}
	}
	return ids
}

// utilitySpend sums absolute expense split amounts per utility category,
// optionally bucketed by month.
func utilitySpend(rd core.RefData, ids map[int]bool, txns []core.Transaction, byMonth bool) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, t := range txns {
		for _, s := range t.Splits {
			if !s.IsExpense() {
				continue
			}
			id := rd.ResolveSplit(s, t)
			if !ids[id] || rd.IsTransferCategory(id) {
				continue
			}
			bucket := ""
			if byMonth {
				bucket = monthKey(t.TransactedAt)
			}
			if out[bucket] == nil {
				out[bucket] = make(map[string]float64)
			}
			out[bucket][rd.CategoryName(id)] += -s.Amount
		}
	}
	return out
}

// buildUtilities reports spend for the fixed utility category set, either
// per month or as a comparison of this period against the same calendar
// months one year prior. The two comparison periods are independent queries
// and run concurrently.
func buildUtilities(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	ids := utilityCategoryIDs(rd)
	if len(ids) == 0 {
		return periodOf(p.Start, p.End), nil, nil
	}

	if p.Mode == ModeYearComparison {
		return buildUtilitiesYearComparison(ctx, e, rd, ids, p)
	}

	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	spend := utilitySpend(rd, ids, txns, true)
	months := make([]string, 0, len(spend))
	for month := range spend {
		months = append(months, month)
	}
	sort.Strings(months)

	var data []any
	for _, month := range months {
		categories := make([]string, 0, len(spend[month]))
		for name := range spend[month] {
			categories = append(categories, name)
		}
		sort.Strings(categories)
		for _, name := range categories {
			data = append(data, UtilityMonthlyPoint{
				Category: name,
				Month:    month,
				Amount:   round2(spend[month][name]),
			})
		}
	}
	return periodOf(p.Start, p.End), data, nil
}

func buildUtilitiesYearComparison(ctx context.Context, e *Engine, rd core.RefData, ids map[int]bool, p Params) (Period, []any, error) {
	var thisPeriod, priorPeriod []core.Transaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		thisPeriod, err = e.query(gctx, rangeFilter(p))
		return err
	})
	g.Go(func() error {
		var err error
		priorPeriod, err = e.query(gctx, ledger.Filter{
			Start:               p.Start.AddDate(-1, 0, 0),
			End:                 p.End.AddDate(-1, 0, 0),
			ExcludeAccountTypes: p.ExcludeAccountTypes,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return Period{}, nil, err
	}

	thisYear := utilitySpend(rd, ids, thisPeriod, false)[""]
	lastYear := utilitySpend(rd, ids, priorPeriod, false)[""]

	names := make(map[string]bool)
	for name := range thisYear {
		names[name] = true
	}
	for name := range lastYear {
		names[name] = true
	}

	rows := make([]UtilityYearComparisonPoint, 0, len(names))
	for name := range names {
		rows = append(rows, UtilityYearComparisonPoint{
			Category: name,
			ThisYear: round2(thisYear[name]),
			LastYear: round2(lastYear[name]),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ThisYear != rows[j].ThisYear {
			return rows[i].ThisYear > rows[j].ThisYear
		}
		return rows[i].Category < rows[j].Category
	})

	data := make([]any, len(rows))
	for i, r := range rows {
		data[i] = r
	}
	return periodOf(p.Start, p.End), data, nil
}
