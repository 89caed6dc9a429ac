package google

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tally/internal/reports"
)

// reportRows turns a report envelope into spreadsheet rows: a title row with
// the period, a header row derived from the first point's JSON keys, then one
// row per data point. Nested values are written as compact JSON.
func reportRows(out reports.Output) ([][]interface{}, error) {
	rows := [][]interface{}{
		{"Report", out.ReportKind, "From", out.Period.Start, "To", out.Period.End},
	}
	if len(out.Data) == 0 {
		return rows, nil
	}

	first, err := json.Marshal(out.Data[0])
	if err != nil {
		return nil, err
	}
	keys, err := jsonKeys(first)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(keys))
	for i, k := range keys {
		header[i] = k
	}
	rows = append(rows, header)

	for _, point := range out.Data {
		raw, err := json.Marshal(point)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(keys))
		for i, k := range keys {
			row[i] = cellValue(fields[k])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// jsonKeys returns the top-level object keys of b in declaration order.
func jsonKeys(b []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("report point is not a JSON object")
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in report point", keyTok)
		}
		keys = append(keys, key)

		// Skip the value, whatever its shape.
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// cellValue converts a raw JSON value into something the Sheets API accepts.
func cellValue(raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	// Arrays and objects are stored verbatim.
	return string(raw)
}
