// Package reports turns a ledger of transactions into the derived analytical
// views shown on dashboards. Every computation is a pure function of the
// ledger slice, the reference-data snapshot and the request parameters; the
// engine holds no mutable state between invocations and is safe to run
// concurrently across requests.
package reports

import (
	"context"
	"fmt"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Engine dispatches report requests to their builders over an injected
// ledger reader. The clock is injected so projection-based reports are
// deterministic under test.
type Engine struct {
	reader ledger.Reader
	now    func() time.Time
}

// NewEngine creates an engine over the given ledger reader.
func NewEngine(reader ledger.Reader) *Engine {
	return &Engine{reader: reader, now: time.Now}
}

// NewEngineAt creates an engine with a fixed clock.
func NewEngineAt(reader ledger.Reader, now func() time.Time) *Engine {
	return &Engine{reader: reader, now: now}
}

// builderFunc computes one report kind. It returns the resolved period and
// the kind-specific data points.
type builderFunc func(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error)

// builders is the closed registry of report builders. Kinds() and this map
// cover the same set; the registry test keeps them in sync.
var builders = map[Kind]builderFunc{
	KindCategoryTrends:   buildCategoryTrends,
	KindBudgetUsage:      buildBudgetUsage,
	KindBudgetTrends:     buildBudgetTrends,
	KindIncomeVsExpenses: buildIncomeVsExpenses,
	KindNetWorthHistory:  buildNetWorthHistory,
	KindUtilities:        buildUtilities,
	KindUpcomingBills:    buildUpcomingBills,
	KindPaycheckAnalysis: buildPaycheckAnalysis,
	KindTopTransactions:  buildTopTransactions,
}

// Generate computes one report. Unknown kinds yield an empty, well-formed
// envelope; a ledger failure propagates as a hard error, never partial data.
func (e *Engine) Generate(ctx context.Context, kind Kind, p Params) (Output, error) {
	p = applyDefaults(kind, p, e.now())

	build, ok := builders[kind]
	if !ok {
		return Output{
			ReportKind: string(kind),
			Period:     periodOf(p.Start, p.End),
			Data:       []any{},
		}, nil
	}

	rd, err := e.reader.RefData(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("load reference data: %w", err)
	}

	period, data, err := build(ctx, e, rd, p)
	if err != nil {
		return Output{}, fmt.Errorf("build %s: %w", kind, err)
	}
	if data == nil {
		data = []any{}
	}
	return Output{ReportKind: string(kind), Period: period, Data: data}, nil
}

// applyDefaults resolves the per-kind parameter defaults.
func applyDefaults(kind Kind, p Params, now time.Time) Params {
	if p.Limit <= 0 {
		if kind == KindTopTransactions {
			p.Limit = 5
		} else {
			p.Limit = 10
		}
	}
	if p.Mode == "" {
		switch kind {
		case KindCategoryTrends:
			p.Mode = ModePerMonth
		case KindUtilities:
			p.Mode = ModeMonthly
		}
	}
	if p.ExcludeAccountTypes == nil && kind != KindUpcomingBills {
		p.ExcludeAccountTypes = []core.AccountType{core.AccountInvestment}
	}
	if p.LookforwardDays <= 0 {
		p.LookforwardDays = 30
	}
	if p.LookbackMonths <= 0 {
		p.LookbackMonths = 6
	}

	switch kind {
	case KindPaycheckAnalysis:
		if p.Start.IsZero() && p.End.IsZero() {
			p.End = now
			p.Start = now.AddDate(0, -p.LookbackMonths, 0)
		}
	case KindIncomeVsExpenses, KindNetWorthHistory:
		// These always operate on whole calendar months.
		if !p.Start.IsZero() {
			p.Start = monthStart(p.Start)
		}
		if !p.End.IsZero() {
			p.End = monthEnd(p.End)
		}
	}
	return p
}

// query runs a filtered ledger read.
func (e *Engine) query(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	txns, err := e.reader.QueryTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return txns, nil
}

// rangeFilter builds the standard filter for a report's date range.
func rangeFilter(p Params) ledger.Filter {
	return ledger.Filter{
		Start:               p.Start,
		End:                 p.End,
		ExcludeAccountTypes: p.ExcludeAccountTypes,
	}
}

func periodOf(start, end time.Time) Period {
	var pd Period
	if !start.IsZero() {
		pd.Start = start.Format(isoDateLayout)
	}
	if !end.IsZero() {
		pd.End = end.Format(isoDateLayout)
	}
	return pd
}
