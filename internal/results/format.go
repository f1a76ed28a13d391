// ABOUTME: Value formatting and lenient JSON shapes for result views
// ABOUTME: Flattens nested confidence intervals and keeps truth-table column order

package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Interval is a confidence interval. The backend sends either [lo, hi] or a
// list of such pairs; both decode to a flat list.
type Interval []float64

// UnmarshalJSON accepts a flat or nested list of numbers.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*iv = nil
		return nil
	}

	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		*iv = flat
		return nil
	}

	var nested [][]float64
	if err := json.Unmarshal(data, &nested); err != nil {
		return fmt.Errorf("confidence_interval: %w", err)
	}
	out := Interval{}
	for _, pair := range nested {
		out = append(out, pair...)
	}
	*iv = out
	return nil
}

func (iv Interval) String() string {
	return joinFloats(iv, " - ")
}

// TruthTable is a list of rows with a shared column set. Columns are taken
// from the first row in the order the backend sent them.
type TruthTable struct {
	Columns []string
	Rows    [][]string
}

// UnmarshalJSON decodes an array of objects, preserving key order.
func (tt *TruthTable) UnmarshalJSON(data []byte) error {
	*tt = TruthTable{}
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("truth_table: %w", err)
	}

	for i, raw := range rows {
		keys, values, err := orderedObject(raw)
		if err != nil {
			return fmt.Errorf("truth_table row %d: %w", i, err)
		}
		if i == 0 {
			tt.Columns = keys
		}
		cells := make([]string, len(tt.Columns))
		for j, col := range tt.Columns {
			if v, ok := values[col]; ok {
				cells[j] = formatValue(v)
			}
		}
		tt.Rows = append(tt.Rows, cells)
	}
	return nil
}

// orderedObject reads one JSON object and returns its keys in order.
func orderedObject(raw []byte) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object")
	}

	var keys []string
	values := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = v
	}
	return keys, values, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return formatFloat(f)
		}
		return x.String()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// formatFloat prints the shortest representation, switching to exponent
// form only for very small or very large magnitudes.
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptional(f *float64) string {
	if f == nil {
		return "n/a"
	}
	return formatFloat(*f)
}

func joinFloats(fs []float64, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, sep)
}

// WriteText renders a section as aligned plain text.
func WriteText(w io.Writer, s Section) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, s.Title)
	for _, f := range s.Fields {
		fmt.Fprintf(tw, "  %s:\t%s\n", f.Label, f.Value)
	}

	if s.Table != nil && len(s.Table.Columns) > 0 {
		fmt.Fprintln(tw)
		if s.Table.Title != "" {
			fmt.Fprintf(tw, "  %s\n", s.Table.Title)
		}
		fmt.Fprintf(tw, "  %s\n", strings.Join(s.Table.Columns, "\t"))
		for _, row := range s.Table.Rows {
			fmt.Fprintf(tw, "  %s\n", strings.Join(row, "\t"))
		}
	}

	return tw.Flush()
}
