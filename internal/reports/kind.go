package reports

import (
	"time"

	"tally/internal/core"
)

// Kind identifies a report. The set is closed; the dispatcher routes every
// kind through the builders registry and anything else produces an empty,
// well-formed envelope.
type Kind string

const (
	KindCategoryTrends   Kind = "category_trends"
	KindBudgetUsage      Kind = "budget_usage"
	KindBudgetTrends     Kind = "budget_trends"
	KindIncomeVsExpenses Kind = "income_vs_expenses"
	KindNetWorthHistory  Kind = "net_worth_history"
	KindUtilities        Kind = "utilities"
	KindUpcomingBills    Kind = "upcoming_bills"
	KindPaycheckAnalysis Kind = "paycheck_analysis"
	KindTopTransactions  Kind = "top_transactions"
)

// Kinds lists every supported report kind.
func Kinds() []Kind {
	return []Kind{
		KindCategoryTrends,
		KindBudgetUsage,
		KindBudgetTrends,
		KindIncomeVsExpenses,
		KindNetWorthHistory,
		KindUtilities,
		KindUpcomingBills,
		KindPaycheckAnalysis,
		KindTopTransactions,
	}
}

// ParseKind validates a report kind tag.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	for _, known := range Kinds() {
		if k == known {
			return k, true
		}
	}
	return k, false
}

// Trend aggregation modes.
const (
	ModeGlobal   = "global"
	ModePerMonth = "per_month"
)

// Utilities report modes.
const (
	ModeMonthly        = "monthly"
	ModeYearComparison = "year_comparison"
)

// Params is the parameter bag accepted by the dispatcher. Each builder reads
// only the fields that apply to its kind; zero values select per-kind
// defaults.
type Params struct {
	Start time.Time
	End   time.Time

	// Limit truncates ranked output. 0 selects the kind default
	// (10, except top_transactions which defaults to 5).
	Limit int

	// Mode selects a sub-report where the kind supports one
	// (category_trends: global|per_month; utilities: monthly|year_comparison).
	Mode string

	// ExcludeAccountTypes overrides the default account-type exclusion.
	// nil means "investment" for every kind except upcoming_bills, which
	// restricts by category group instead. An explicit empty slice disables
	// exclusion.
	ExcludeAccountTypes []core.AccountType

	// LookforwardDays bounds the upcoming-bills projection window (default 30).
	LookforwardDays int

	// LookbackMonths sizes the paycheck-analysis window when Start/End are
	// unset (default 6).
	LookbackMonths int
}

// Period is the resolved date range a report was computed over.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Output is the stable envelope produced for every report kind. Data holds
// kind-specific points; it is never nil so an empty report serializes as [].
type Output struct {
	ReportKind string `json:"report_kind"`
	Period     Period `json:"period"`
	Data       []any  `json:"data"`
}

// Kind-specific data point shapes. Field tags are the wire contract.
type (
	// CategoryTrendPoint is one category_trends entry. CategoryID -1 with
	// category "Other" is the overflow bucket.
	CategoryTrendPoint struct {
		Month      string  `json:"month"`
		Category   string  `json:"category"`
		CategoryID int     `json:"category_id"`
		GroupName  string  `json:"group_name"`
		Total      float64 `json:"total"`
	}

	BudgetUsageRow struct {
		CategoryID  int     `json:"category_id"`
		Category    string  `json:"category"`
		Budget      float64 `json:"budget"`
		Actual      float64 `json:"actual"`
		Utilization float64 `json:"utilization"`
		OverBudget  bool    `json:"over_budget"`
	}

	BudgetTrendPoint struct {
		Month      string  `json:"month"`
		CategoryID int     `json:"category_id"`
		Category   string  `json:"category"`
		Budget     float64 `json:"budget"`
		Spent      float64 `json:"spent"`
	}

	IncomeExpensePoint struct {
		Month    string  `json:"month"`
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
		Net      float64 `json:"net"`
	}

	NetWorthPoint struct {
		Month    string  `json:"month"`
		NetWorth float64 `json:"net_worth"`
	}

	UtilityMonthlyPoint struct {
		Category string  `json:"category"`
		Month    string  `json:"month"`
		Amount   float64 `json:"amount"`
	}

	UtilityYearComparisonPoint struct {
		Category string  `json:"category"`
		ThisYear float64 `json:"this_year"`
		LastYear float64 `json:"last_year"`
	}

	UpcomingBillPoint struct {
		Payee               string  `json:"payee"`
		Category            string  `json:"category"`
		AverageAmount       float64 `json:"average_amount"`
		ExpectedDate        string  `json:"expected_date"`
		RecurrenceType      string  `json:"recurrence_type"`
		DaysUntilDue        int     `json:"days_until_due"`
		LastTransactionDate string  `json:"last_transaction_date"`
	}

	Paycheck struct {
		ID          string  `json:"id"`
		Date        string  `json:"date"`
		Amount      float64 `json:"amount"`
		Payee       string  `json:"payee"`
		Account     string  `json:"account"`
		Description string  `json:"description"`
	}

	PaycheckSummary struct {
		TotalCount    int     `json:"total_count"`
		AverageAmount float64 `json:"average_amount"`
		MedianAmount  float64 `json:"median_amount"`
		StdDeviation  float64 `json:"std_deviation"`
		MinAmount     float64 `json:"min_amount"`
		MaxAmount     float64 `json:"max_amount"`
		TotalIncome   float64 `json:"total_income"`
	}

	PayeeStats struct {
		Count            int     `json:"count"`
		AverageAmount    float64 `json:"average_amount"`
		StdDeviation     float64 `json:"std_deviation"`
		MinAmount        float64 `json:"min_amount"`
		MaxAmount        float64 `json:"max_amount"`
		TotalIncome      float64 `json:"total_income"`
		Trend            string  `json:"trend"`
		LastPaycheckDate string  `json:"last_paycheck_date"`
	}

	PaycheckAnomaly struct {
		Paycheck
		DeviationSigma    float64 `json:"deviation_sigma"`
		DifferenceFromAvg float64 `json:"difference_from_avg"`
	}

	// PaycheckAnalysis is the single element wrapped by the
	// paycheck_analysis envelope.
	PaycheckAnalysis struct {
		Paychecks []Paycheck            `json:"paychecks"`
		Summary   PaycheckSummary       `json:"summary"`
		ByPayee   map[string]PayeeStats `json:"by_payee"`
		Trend     string                `json:"trend"`
		Anomalies []PaycheckAnomaly     `json:"anomalies"`
	}

	TopTransactionPoint struct {
		ID          string  `json:"id"`
		Date        string  `json:"date"`
		Payee       string  `json:"payee"`
		Category    string  `json:"category"`
		Account     string  `json:"account"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
	}
)

// Trend classifications shared by paycheck analysis.
const (
	TrendIncreasing       = "increasing"
	TrendDecreasing       = "decreasing"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)
