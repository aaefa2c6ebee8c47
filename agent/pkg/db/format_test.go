package db

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	t.Parallel()

	f := 3.5
	var nilPtr *float64
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "NULL", FormatValue(nilPtr))
	assert.Equal(t, "3.5", FormatValue(&f))
	assert.Equal(t, "2025-06-01T12:00:00Z", FormatValue(ts))
	assert.Equal(t, "hello", FormatValue([]byte("hello")))
	assert.Equal(t, "NaN", FormatValue(math.NaN()))
	assert.Equal(t, "Inf", FormatValue(math.Inf(1)))
	assert.Equal(t, "42", FormatValue(int64(42)))
}

func TestSanitizeRows(t *testing.T) {
	t.Parallel()

	bad := math.NaN()
	rows := []map[string]any{
		{"a": math.NaN(), "b": math.Inf(-1), "c": 1.5, "d": &bad},
	}
	SanitizeRows(rows)

	assert.Nil(t, rows[0]["a"])
	assert.Nil(t, rows[0]["b"])
	assert.Equal(t, 1.5, rows[0]["c"])
	assert.Nil(t, rows[0]["d"])
}

func TestFormatRows(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "Query returned no results.", FormatRows([]string{"a"}, nil))
	})

	t.Run("truncates long results", func(t *testing.T) {
		t.Parallel()

		rows := make([]map[string]any, 60)
		for i := range rows {
			rows[i] = map[string]any{"n": i}
		}
		out := FormatRows([]string{"n"}, rows)

		assert.Contains(t, out, "Results (60 rows):")
		assert.Contains(t, out, "... and 10 more rows")
	})
}

func TestEncodeCSV(t *testing.T) {
	t.Parallel()

	data := EncodeCSV([]string{"name", "count"}, []map[string]any{
		{"name": "alpha", "count": int64(3)},
		{"name": "beta", "count": nil},
	})

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,count", lines[0])
	assert.Equal(t, "alpha,3", lines[1])
	assert.Equal(t, "beta,NULL", lines[2])
}
