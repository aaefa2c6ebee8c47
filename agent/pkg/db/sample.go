package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// DefaultSampleRows is the per-table row count when the caller does not ask
// for a specific number.
const DefaultSampleRows = 5

// maxSampleRows caps what a tool call may request.
const maxSampleRows = 50

// sampleConcurrency bounds the parallel per-table queries.
const sampleConcurrency = 4

// sampleSQL builds the random-subsample statement for a dialect. The table
// name must already be verified against the backend's table list.
func sampleSQL(d Dialect, table string, n int) string {
	switch d {
	case DialectClickHouse:
		return fmt.Sprintf("SELECT * FROM %s ORDER BY rand() LIMIT %d", table, n)
	default:
		// Postgres and SQLite share RANDOM()
		return fmt.Sprintf("SELECT * FROM %s ORDER BY RANDOM() LIMIT %d", table, n)
	}
}

// SampleTables pulls n random rows from each table in parallel and returns
// the formatted samples keyed by table name. Unknown tables are rejected up
// front so the sampler never interpolates unverified names into SQL.
func SampleTables(ctx context.Context, backend Backend, tables []string, n int) (map[string]string, error) {
	if n <= 0 {
		n = DefaultSampleRows
	}
	if n > maxSampleRows {
		n = maxSampleRows
	}

	known, err := backend.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	knownSet := make(map[string]bool, len(known))
	for _, t := range known {
		knownSet[t] = true
	}

	if len(tables) == 0 {
		tables = known
	} else {
		for _, t := range tables {
			if !knownSet[t] {
				return nil, fmt.Errorf("unknown table %q", t)
			}
		}
	}

	samples := make(map[string]string, len(tables))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sampleConcurrency)
	for _, table := range tables {
		g.Go(func() error {
			columns, rows, err := backend.Query(gctx, sampleSQL(backend.Dialect(), table, n))
			if err != nil {
				return fmt.Errorf("failed to sample table %s: %w", table, err)
			}
			SanitizeRows(rows)

			mu.Lock()
			samples[table] = FormatRows(columns, rows)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return samples, nil
}

// SampleTool exposes table sampling to the agent, so it can inspect real row
// shapes before writing SQL.
func SampleTool(backend Backend) workflow.Tool {
	return workflow.Tool{
		Name: "sample_tables",
		Description: "Fetch a few random rows from database tables to see real data shapes and value formats. " +
			"Omit the tables parameter to sample every table.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tables": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Table names to sample. Defaults to all tables.",
				},
				"rows_per_table": map[string]any{
					"type":        "integer",
					"description": "Rows per table, up to 50. Defaults to 5.",
				},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			var tables []string
			if raw, ok := params["tables"].([]any); ok {
				for _, t := range raw {
					if s, ok := t.(string); ok {
						tables = append(tables, s)
					}
				}
			}
			n := DefaultSampleRows
			if f, ok := params["rows_per_table"].(float64); ok {
				n = int(f)
			}

			samples, err := SampleTables(ctx, backend, tables, n)
			if err != nil {
				return "", err
			}

			names := make([]string, 0, len(samples))
			for name := range samples {
				names = append(names, name)
			}
			sort.Strings(names)

			var sb strings.Builder
			for i, name := range names {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString("=== " + name + " ===\n")
				sb.WriteString(samples[name])
			}
			return sb.String(), nil
		},
	}
}
