package reports

import (
	"context"
	"math"
	"sort"

	"tally/internal/core"
)

// mean returns the arithmetic mean, 0 for an empty series.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// median averages the two middle values for even-length series.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// popStdDev is the population standard deviation: the square root of the
// mean of squared deviations, not the sample estimator.
func popStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// trendMinObservations is the boundary below which no trend is classified.
// A 4-element series is evaluated, not skipped.
const trendMinObservations = 4

// classifyTrend compares the recent half of a newest-first series against
// the older half. Movement past ±5% of the older mean counts as a trend.
func classifyTrend(newestFirst []float64) string {
	if len(newestFirst) < trendMinObservations {
		return TrendInsufficientData
	}
	mid := len(newestFirst) / 2
	recent := mean(newestFirst[:mid])
	older := mean(newestFirst[mid:])
	switch {
	case recent > older*1.05:
		return TrendIncreasing
	case recent < older*0.95:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// anomalyMinObservations gates anomaly detection; below this a deviation
// means nothing.
const anomalyMinObservations = 3

// anomalySigma flags observations at least this many standard deviations
// from the mean.
const anomalySigma = 2.0

type paycheckObservation struct {
	entry  Paycheck
	amount float64
}

// buildPaycheckAnalysis computes payroll statistics with per-payee
// breakdowns, trend classification and 2-sigma anomaly detection over all
// inflows resolving to the payroll category.
func buildPaycheckAnalysis(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	txns, err := e.query(ctx, rangeFilter(p))
	if err != nil {
		return Period{}, nil, err
	}

	paycheckCat := rd.PaycheckCategoryID()

	// Newest first; the trend split depends on this ordering.
	var observations []paycheckObservation
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		if rd.IsTransfer(t) {
			continue
		}
		for _, s := range t.Splits {
			if !s.IsIncome() || rd.ResolveSplit(s, t) != paycheckCat {
				continue
			}
			account := ""
			if a, ok := rd.Account(t.AccountID); ok {
				account = a.DisplayName()
			}
			observations = append(observations, paycheckObservation{
				amount: s.Amount,
				entry: Paycheck{
					ID:          t.ID,
					Date:        t.TransactedAt.Format(isoDateLayout),
					Amount:      round2(s.Amount),
					Payee:       rd.PayeeName(t),
					Account:     account,
					Description: t.Description,
				},
			})
			break // one observation per transaction
		}
	}

	analysis := analyzePaychecks(observations)
	return periodOf(p.Start, p.End), []any{analysis}, nil
}

func analyzePaychecks(observations []paycheckObservation) PaycheckAnalysis {
	analysis := PaycheckAnalysis{
		Paychecks: []Paycheck{},
		ByPayee:   map[string]PayeeStats{},
		Trend:     TrendInsufficientData,
		Anomalies: []PaycheckAnomaly{},
	}
	if len(observations) == 0 {
		return analysis
	}

	amounts := make([]float64, len(observations))
	payeeAmounts := make(map[string][]float64)
	payeeLastDate := make(map[string]string)
	for i, obs := range observations {
		amounts[i] = obs.amount
		analysis.Paychecks = append(analysis.Paychecks, obs.entry)
		name := obs.entry.Payee
		payeeAmounts[name] = append(payeeAmounts[name], obs.amount)
		if payeeLastDate[name] == "" || obs.entry.Date > payeeLastDate[name] {
			payeeLastDate[name] = obs.entry.Date
		}
	}

	avg := mean(amounts)
	stdDev := popStdDev(amounts)
	min, max := amounts[0], amounts[0]
	var total float64
	for _, a := range amounts {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
		total += a
	}

	analysis.Summary = PaycheckSummary{
		TotalCount:    len(amounts),
		AverageAmount: round2(avg),
		MedianAmount:  round2(median(amounts)),
		StdDeviation:  round2(stdDev),
		MinAmount:     round2(min),
		MaxAmount:     round2(max),
		TotalIncome:   round2(total),
	}
	analysis.Trend = classifyTrend(amounts)

	for name, series := range payeeAmounts {
		var payeeTotal float64
		pmin, pmax := series[0], series[0]
		for _, a := range series {
			if a < pmin {
				pmin = a
			}
			if a > pmax {
				pmax = a
			}
			payeeTotal += a
		}
		analysis.ByPayee[name] = PayeeStats{
			Count:            len(series),
			AverageAmount:    round2(mean(series)),
			StdDeviation:     round2(popStdDev(series)),
			MinAmount:        round2(pmin),
			MaxAmount:        round2(pmax),
			TotalIncome:      round2(payeeTotal),
			Trend:            classifyTrend(series),
			LastPaycheckDate: payeeLastDate[name],
		}
	}

	if len(amounts) >= anomalyMinObservations && stdDev > 0 {
		for i, obs := range observations {
			sigma := math.Abs(amounts[i]-avg) / stdDev
			if sigma >= anomalySigma {
				analysis.Anomalies = append(analysis.Anomalies, PaycheckAnomaly{
					Paycheck:          obs.entry,
					DeviationSigma:    round2(sigma),
					DifferenceFromAvg: round2(amounts[i] - avg),
				})
			}
		}
	}
	return analysis
}
