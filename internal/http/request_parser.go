package http

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/reports"
)

const dateLayout = "2006-01-02"

// parseReportParams reads the report query parameters. Unset values stay
// zero so the engine applies per-kind defaults; malformed values are a hard
// 400, never silently ignored.
func parseReportParams(query url.Values) (reports.Params, error) {
	var p reports.Params

	var err error
	if p.Start, err = parseDate(query, "start"); err != nil {
		return p, err
	}
	if p.End, err = parseDate(query, "end"); err != nil {
		return p, err
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return p, fmt.Errorf("end %s before start %s", p.End.Format(dateLayout), p.Start.Format(dateLayout))
	}

	if p.Limit, err = parsePositiveInt(query, "limit"); err != nil {
		return p, err
	}
	if p.LookforwardDays, err = parsePositiveInt(query, "lookforward_days"); err != nil {
		return p, err
	}
	if p.LookbackMonths, err = parsePositiveInt(query, "lookback_months"); err != nil {
		return p, err
	}

	if v := strings.TrimSpace(query.Get("mode")); v != "" {
		switch v {
		case reports.ModeGlobal, reports.ModePerMonth, reports.ModeMonthly, reports.ModeYearComparison:
			p.Mode = v
		default:
			return p, fmt.Errorf("invalid mode %q", v)
		}
	}

	if _, present := query["exclude_account_types"]; present {
		p.ExcludeAccountTypes = []core.AccountType{}
		for _, raw := range strings.Split(query.Get("exclude_account_types"), ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			at, err := parseAccountType(raw)
			if err != nil {
				return p, err
			}
			p.ExcludeAccountTypes = append(p.ExcludeAccountTypes, at)
		}
	}

	return p, nil
}

func parseDate(query url.Values, key string) (time.Time, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q, want YYYY-MM-DD", key, v)
	}
	return t, nil
}

func parsePositiveInt(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q, want a positive integer", key, v)
	}
	return n, nil
}

func parseAccountType(v string) (core.AccountType, error) {
	switch at := core.AccountType(v); at {
	case core.AccountBank, core.AccountCreditCard, core.AccountInvestment, core.AccountLoan, core.AccountOther:
		return at, nil
	default:
		return "", fmt.Errorf("unknown account type %q", v)
	}
}

// reportCacheKey derives the cache key from the parsed parameters, so two
// spellings of the same query share an entry and unparsed junk never pollutes
// the cache.
func reportCacheKey(kind reports.Kind, p reports.Params) string {
	// nil means "kind default" and is a different report than an explicit
	// empty exclusion list.
	excluded := "default"
	if p.ExcludeAccountTypes != nil {
		types := make([]string, len(p.ExcludeAccountTypes))
		for i, at := range p.ExcludeAccountTypes {
			types[i] = string(at)
		}
		sort.Strings(types)
		excluded = strings.Join(types, ",")
	}

	return strings.Join([]string{
		string(kind),
		p.Start.Format(dateLayout),
		p.End.Format(dateLayout),
		strconv.Itoa(p.Limit),
		p.Mode,
		excluded,
		strconv.Itoa(p.LookforwardDays),
		strconv.Itoa(p.LookbackMonths),
	}, "|")
}
