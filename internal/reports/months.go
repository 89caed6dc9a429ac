package reports

import (
	"math"
	"time"
)

const (
	monthKeyLayout = "2006-01"
	isoDateLayout  = "2006-01-02"
)

// monthKey formats a timestamp as its calendar month bucket.
func monthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// monthStart returns midnight on the first day of t's month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// monthEnd returns the last instant of t's month.
func monthEnd(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, 0).Add(-time.Second)
}

// monthsBetween enumerates calendar month keys from start to end, inclusive
// of both endpoints' months, in chronological order.
func monthsBetween(start, end time.Time) []string {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	var out []string
	for cur := monthStart(start); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		out = append(out, monthKey(cur))
	}
	return out
}

// round2 rounds a monetary value to 2 decimal places. Applied at the point
// of emission only; intermediate sums stay unrounded.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
