package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteBackend is the SQLite implementation of Backend, used for the demo
// dataset and in tests.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database file. ":memory:" works for throwaway
// databases.
func OpenSQLite(ctx context.Context, t Target) (*SQLiteBackend, error) {
	path := t.Path
	if path == "" {
		path = t.DSN
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite target needs a path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// WrapSQLite adopts an already-open database handle.
func WrapSQLite(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (b *SQLiteBackend) Dialect() Dialect { return DialectSQLite }

func (b *SQLiteBackend) Close() error { return b.db.Close() }

// DB exposes the underlying handle, for migrations.
func (b *SQLiteBackend) DB() *sql.DB { return b.db }

func (b *SQLiteBackend) Query(ctx context.Context, query string, args ...any) ([]string, []map[string]any, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var resultRows []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		holders := make([]any, len(columns))
		for i := range values {
			holders[i] = &values[i]
		}
		if err := rows.Scan(holders...); err != nil {
			return nil, nil, fmt.Errorf("scan error: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			// database/sql hands text back as []byte
			if bs, ok := v.([]byte); ok {
				v = string(bs)
			}
			row[col] = v
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, resultRows, nil
}

// Tables lists user tables, skipping sqlite internals and goose bookkeeping.
func (b *SQLiteBackend) Tables(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name != 'goose_db_version'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// FetchSchema renders each table's columns from PRAGMA table_info.
func (b *SQLiteBackend) FetchSchema(ctx context.Context) (string, error) {
	tables, err := b.Tables(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Database Schema:\n\n")
	for i, table := range tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Table: " + table + "\nColumns:\n")

		rows, err := b.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
		if err != nil {
			return "", fmt.Errorf("failed to describe table %s: %w", table, err)
		}
		for rows.Next() {
			var (
				cid       int
				name      string
				colType   string
				notNull   int
				dfltValue sql.NullString
				pk        int
			)
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
				rows.Close()
				return "", err
			}
			var attrs []string
			if pk > 0 {
				attrs = append(attrs, "primary key")
			}
			if notNull == 1 {
				attrs = append(attrs, "not null")
			}
			suffix := ""
			if len(attrs) > 0 {
				suffix = ", " + strings.Join(attrs, ", ")
			}
			sb.WriteString("  - " + name + " (" + colType + suffix + ")\n")
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", err
		}
		rows.Close()
	}

	return sb.String(), nil
}

var _ Backend = (*SQLiteBackend)(nil)
