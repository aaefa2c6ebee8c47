package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend is the Postgres implementation of Backend.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx connection pool and pings it.
func OpenPostgres(ctx context.Context, t Target) (*PostgresBackend, error) {
	poolConfig, err := pgxpool.ParseConfig(t.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Dialect() Dialect { return DialectPostgres }

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func (b *PostgresBackend) Query(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error) {
	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var resultRows []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("scan error: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, resultRows, nil
}

// Tables lists the public-schema tables.
func (b *PostgresBackend) Tables(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
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

// FetchSchema renders the public-schema columns from information_schema.
func (b *PostgresBackend) FetchSchema(ctx context.Context) (string, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT
			table_name,
			column_name,
			data_type,
			is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return "", fmt.Errorf("failed to fetch columns: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteString("Database Schema:\n\n")
	currentTable := ""
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return "", err
		}
		if table != currentTable {
			if currentTable != "" {
				sb.WriteString("\n")
			}
			currentTable = table
			sb.WriteString("Table: " + table + "\nColumns:\n")
		}
		suffix := ""
		if nullable == "NO" {
			suffix = ", not null"
		}
		sb.WriteString("  - " + column + " (" + dataType + suffix + ")\n")
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

var _ Backend = (*PostgresBackend)(nil)
