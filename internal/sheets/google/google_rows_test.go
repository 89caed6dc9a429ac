package google

import (
	"encoding/json"
	"reflect"
	"testing"

	"tally/internal/reports"
)

func TestReportRowsBuildsHeaderFromPointKeys(t *testing.T) {
	out := reports.Output{
		ReportKind: "budget_usage",
		Period:     reports.Period{Start: "2025-01-01", End: "2025-03-31"},
		Data: []any{
			reports.BudgetUsageRow{CategoryID: 10, Category: "Groceries", Budget: 500, Actual: 450, Utilization: 0.9},
			reports.BudgetUsageRow{CategoryID: 13, Category: "Dining Out", Budget: 200, Actual: 250, Utilization: 1.25, OverBudget: true},
		},
	}

	rows, err := reportRows(out)
	if err != nil {
		t.Fatalf("reportRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("reportRows() returned %d rows, want 4 (title + header + 2 points)", len(rows))
	}

	wantTitle := []interface{}{"Report", "budget_usage", "From", "2025-01-01", "To", "2025-03-31"}
	if !reflect.DeepEqual(rows[0], wantTitle) {
		t.Errorf("title row = %v, want %v", rows[0], wantTitle)
	}

	// Header must follow struct declaration order, not alphabetical order.
	header := rows[1]
	if header[0] != "category_id" || header[1] != "category" {
		t.Errorf("header starts with %v, %v; want category_id, category", header[0], header[1])
	}

	if rows[2][1] != "Groceries" {
		t.Errorf("first data row category_name = %v, want Groceries", rows[2][1])
	}
	if rows[3][1] != "Dining Out" {
		t.Errorf("second data row category_name = %v, want Dining Out", rows[3][1])
	}
}

func TestReportRowsEmptyData(t *testing.T) {
	out := reports.Output{
		ReportKind: "category_trends",
		Period:     reports.Period{Start: "2025-01-01", End: "2025-06-30"},
		Data:       []any{},
	}

	rows, err := reportRows(out)
	if err != nil {
		t.Fatalf("reportRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("reportRows() returned %d rows, want only the title row", len(rows))
	}
}

func TestJSONKeysPreservesOrder(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`{"z":1,"a":2,"m":3}`, []string{"z", "a", "m"}},
		{`{"outer":{"inner":1},"next":[1,2]}`, []string{"outer", "next"}},
		{`{}`, nil},
	}

	for i, c := range cases {
		got, err := jsonKeys([]byte(c.in))
		if err != nil {
			t.Fatalf("case %d: jsonKeys() error = %v", i, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("case %d: jsonKeys() = %v, want %v", i, got, c.want)
		}
	}
}

func TestCellValue(t *testing.T) {
	cases := []struct {
		in   string
		want interface{}
	}{
		{`"hello"`, "hello"},
		{`42.5`, 42.5},
		{`true`, true},
		{`null`, ""},
		{`[1,2,3]`, "[1,2,3]"},
		{`{"a":1}`, `{"a":1}`},
	}

	for i, c := range cases {
		got := cellValue(json.RawMessage(c.in))
		if got != c.want {
			t.Errorf("case %d: cellValue(%s) = %v, want %v", i, c.in, got, c.want)
		}
	}
}

func TestSheetNameFor(t *testing.T) {
	c := &Client{sheetPrefix: "Reports"}
	if got := c.sheetNameFor("net_worth_history"); got != "Reports net_worth_history" {
		t.Errorf("sheetNameFor() = %q, want %q", got, "Reports net_worth_history")
	}
}
