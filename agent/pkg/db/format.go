package db

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// FormatValue renders one cell for human-readable output. Pointer values
// (ClickHouse Nullable columns scan into pointers) are dereferenced first.
func FormatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "NULL"
		}
		rv = rv.Elem()
	}
	v = rv.Interface()

	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []byte:
		return string(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	return fmt.Sprintf("%g", f)
}

// SanitizeRows replaces NaN and Inf float values with nil in place, so the
// rows survive JSON encoding.
func SanitizeRows(rows []map[string]any) {
	for _, row := range rows {
		for k, v := range row {
			switch f := v.(type) {
			case float64:
				if math.IsNaN(f) || math.IsInf(f, 0) {
					row[k] = nil
				}
			case float32:
				f64 := float64(f)
				if math.IsNaN(f64) || math.IsInf(f64, 0) {
					row[k] = nil
				}
			case *float64:
				if f != nil && (math.IsNaN(*f) || math.IsInf(*f, 0)) {
					row[k] = nil
				}
			}
		}
	}
}

// maxFormattedRows caps the rows shown inline in a formatted result.
const maxFormattedRows = 50

// FormatRows creates a human-readable rendering of a query result.
func FormatRows(columns []string, rows []map[string]any) string {
	if len(rows) == 0 {
		return "Query returned no results."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Results (%d rows):\n", len(rows)))
	sb.WriteString("Columns: " + strings.Join(columns, " | ") + "\n")
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	shown := min(maxFormattedRows, len(rows))
	for i := range shown {
		row := rows[i]
		values := make([]string, 0, len(columns))
		for _, col := range columns {
			values = append(values, FormatValue(row[col]))
		}
		sb.WriteString(strings.Join(values, " | ") + "\n")
	}

	if len(rows) > maxFormattedRows {
		sb.WriteString(fmt.Sprintf("... and %d more rows\n", len(rows)-maxFormattedRows))
	}

	return sb.String()
}
