package reports

import (
	"context"
	"sort"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// amountTolerance is how far a bill may drift from its own mean and still
// count as recurring. 30% absorbs normal monthly fluctuation (a seasonal
// electric bill) while rejecting one-off purchases at the same payee.
const amountTolerance = 0.30

// overdueGraceDays keeps slightly overdue bills visible instead of silently
// dropping them the day after they were due.
const overdueGraceDays = 5

// patternLookbackDays is how much history feeds the detector.
const patternLookbackDays = 365

type billObservation struct {
	date       time.Time
	amount     float64
	categoryID int
}

// buildUpcomingBills forecasts near-term recurring expenses purely from
// history: no user-configured recurrence metadata exists. A payee qualifies
// as recurring with at least two bills-group expenses whose amounts all sit
// within tolerance of their own mean; the next occurrence is assumed one
// calendar month after the most recent one. Bi-monthly, quarterly and annual
// cadences are not modeled; recurrence_type is always "monthly".
func buildUpcomingBills(ctx context.Context, e *Engine, rd core.RefData, p Params) (Period, []any, error) {
	today := dateOnly(e.now())

	txns, err := e.query(ctx, ledger.Filter{
		Start:               today.AddDate(0, 0, -patternLookbackDays),
		ExcludeAccountTypes: p.ExcludeAccountTypes,
	})
	if err != nil {
		return Period{}, nil, err
	}

	byPayee := make(map[int][]billObservation)
	for _, t := range txns {
		if _, ok := rd.Payee(t.PayeeID); !ok {
			continue
		}
		for _, s := range t.Splits {
			if !s.IsExpense() {
				continue
			}
			id := rd.ResolveSplit(s, t)
			if !rd.InBillsGroup(id) {
				continue
			}
			byPayee[t.PayeeID] = append(byPayee[t.PayeeID], billObservation{
				date:       t.TransactedAt,
				amount:     -s.Amount,
				categoryID: id,
			})
		}
	}

	type projected struct {
		point UpcomingBillPoint
		days  int
	}
	var bills []projected

	for payeeID, observations := range byPayee {
		if len(observations) < 2 {
			continue
		}
		sort.Slice(observations, func(i, j int) bool {
			return observations[i].date.Before(observations[j].date)
		})

		var sum float64
		for _, obs := range observations {
			sum += obs.amount
		}
		mean := sum / float64(len(observations))
		if !amountsRegular(observations, mean) {
			continue
		}

		last := observations[len(observations)-1]
		expected := dateOnly(last.date).AddDate(0, 1, 0)
		days := daysBetween(today, expected)
		if days < -overdueGraceDays || days > p.LookforwardDays {
			continue
		}

		payee, _ := rd.Payee(payeeID)
		bills = append(bills, projected{
			days: days,
			point: UpcomingBillPoint{
				Payee:               payee.Name,
				Category:            rd.CategoryName(last.categoryID),
				AverageAmount:       round2(mean),
				ExpectedDate:        expected.Format(isoDateLayout),
				RecurrenceType:      "monthly",
				DaysUntilDue:        max(days, 0),
				LastTransactionDate: dateOnly(last.date).Format(isoDateLayout),
			},
		})
	}

	sort.Slice(bills, func(i, j int) bool {
		if bills[i].days != bills[j].days {
			return bills[i].days < bills[j].days
		}
		return bills[i].point.Payee < bills[j].point.Payee
	})
	if len(bills) > p.Limit {
		bills = bills[:p.Limit]
	}

	data := make([]any, len(bills))
	for i, b := range bills {
		data[i] = b.point
	}
	return Period{
		Start: today.Format(isoDateLayout),
		End:   today.AddDate(0, 0, p.LookforwardDays).Format(isoDateLayout),
	}, data, nil
}

// amountsRegular reports whether every observation sits within tolerance of
// the group mean.
func amountsRegular(observations []billObservation, mean float64) bool {
	if mean <= 0 {
		return false
	}
	for _, obs := range observations {
		if obs.amount < mean*(1-amountTolerance) || obs.amount > mean*(1+amountTolerance) {
			return false
		}
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
