package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDemoForTest(t *testing.T) *SQLiteBackend {
	t.Helper()

	backend, err := OpenDemo(context.Background(), nil, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestDemoDatabase(t *testing.T) {
	backend := openDemoForTest(t)
	ctx := context.Background()

	tables, err := backend.Tables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"patients", "samples", "tcr_clonotypes", "epitopes", "tcr_epitope_bindings"},
		tables)

	schema, err := backend.FetchSchema(ctx)
	require.NoError(t, err)
	assert.Contains(t, schema, "Database Schema:")
	assert.Contains(t, schema, "Table: tcr_clonotypes")
	assert.Contains(t, schema, "Columns:")
	assert.Contains(t, schema, "cdr3_sequence")
}

func TestExecutorQuery(t *testing.T) {
	backend := openDemoForTest(t)
	ctx := context.Background()

	t.Run("basic select", func(t *testing.T) {
		exec := NewExecutor(backend)

		result, err := exec.Query(ctx, "SELECT patient_id, cohort FROM patients ORDER BY patient_id;")
		require.NoError(t, err)

		assert.Equal(t, []string{"patient_id", "cohort"}, result.Columns)
		assert.Equal(t, 5, result.Count)
		assert.Contains(t, result.Formatted, "Results (5 rows):")
		assert.Equal(t, "SELECT patient_id, cohort FROM patients ORDER BY patient_id", result.SQL)
		assert.Empty(t, result.SavedTo)
	})

	t.Run("bad SQL returns an error", func(t *testing.T) {
		exec := NewExecutor(backend)

		_, err := exec.Query(ctx, "SELECT nope FROM missing_table")
		require.Error(t, err)
	})

	t.Run("empty statement is rejected", func(t *testing.T) {
		exec := NewExecutor(backend)

		_, err := exec.Query(ctx, "  ;  ")
		require.Error(t, err)
	})

	t.Run("large results spill to the store", func(t *testing.T) {
		store, err := NewLocalStore(t.TempDir())
		require.NoError(t, err)
		exec := NewExecutor(backend, WithResultStore(store, 2))

		result, err := exec.Query(ctx, "SELECT clonotype_id FROM tcr_clonotypes")
		require.NoError(t, err)

		assert.Greater(t, result.Count, 2)
		assert.NotEmpty(t, result.SavedTo)
		assert.FileExists(t, result.SavedTo)
	})
}

func TestSampleSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"SELECT * FROM epitopes ORDER BY rand() LIMIT 5",
		sampleSQL(DialectClickHouse, "epitopes", 5))
	assert.Equal(t,
		"SELECT * FROM epitopes ORDER BY RANDOM() LIMIT 5",
		sampleSQL(DialectPostgres, "epitopes", 5))
	assert.Equal(t,
		"SELECT * FROM epitopes ORDER BY RANDOM() LIMIT 5",
		sampleSQL(DialectSQLite, "epitopes", 5))
}

func TestSampleTables(t *testing.T) {
	backend := openDemoForTest(t)
	ctx := context.Background()

	t.Run("samples named tables", func(t *testing.T) {
		samples, err := SampleTables(ctx, backend, []string{"epitopes"}, 3)
		require.NoError(t, err)

		require.Contains(t, samples, "epitopes")
		assert.Contains(t, samples["epitopes"], "Columns:")
	})

	t.Run("defaults to every table", func(t *testing.T) {
		samples, err := SampleTables(ctx, backend, nil, 2)
		require.NoError(t, err)
		assert.Len(t, samples, 5)
	})

	t.Run("rejects unknown tables", func(t *testing.T) {
		_, err := SampleTables(ctx, backend, []string{"users; DROP TABLE patients"}, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown table")
	})
}

func TestSampleTool(t *testing.T) {
	backend := openDemoForTest(t)
	tool := SampleTool(backend)

	assert.Equal(t, "sample_tables", tool.Name)

	out, err := tool.Handler(context.Background(), map[string]any{
		"tables":         []any{"patients", "samples"},
		"rows_per_table": float64(2),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "=== patients ===")
	assert.Contains(t, out, "=== samples ===")
}

func TestParseConfig(t *testing.T) {
	t.Setenv("TEST_CH_PASSWORD", "hunter2")

	cfg, err := ParseConfig([]byte(`
default: warehouse
databases:
  - name: warehouse
    driver: clickhouse
    addr: localhost:9000
    database: immuno
    username: default
    password: ${TEST_CH_PASSWORD}
  - name: demo
    driver: sqlite
    path: demo.db
`))
	require.NoError(t, err)

	target, err := cfg.Target("")
	require.NoError(t, err)
	assert.Equal(t, "warehouse", target.Name)
	assert.Equal(t, "hunter2", target.Password)

	demo, err := cfg.Target("demo")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", demo.Driver)

	_, err = cfg.Target("nope")
	require.Error(t, err)
}

func TestParseSchemaDoc(t *testing.T) {
	t.Parallel()

	doc, err := ParseSchemaDoc([]byte(`
database: immuno
description: TCR repertoire warehouse.
tables:
  - name: tcr_clonotypes
    description: One row per clonotype per sample.
    columns:
      - name: cdr3_sequence
        type: TEXT
        description: CDR3 amino acid sequence.
      - name: frequency
        type: REAL
`))
	require.NoError(t, err)

	rendered := doc.Render()
	assert.Contains(t, rendered, "Database Schema: immuno")
	assert.Contains(t, rendered, "Table: tcr_clonotypes")
	assert.Contains(t, rendered, "Columns:")
	assert.Contains(t, rendered, "cdr3_sequence (TEXT): CDR3 amino acid sequence.")

	fetcher := NewStaticSchemaFetcher(doc)
	out, err := fetcher.FetchSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rendered, out)

	_, err = ParseSchemaDoc([]byte("database: empty"))
	require.Error(t, err)
}
