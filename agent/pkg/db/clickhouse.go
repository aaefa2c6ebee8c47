package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseBackend is the ClickHouse implementation of Backend.
type ClickHouseBackend struct {
	conn     driver.Conn
	database string
}

// OpenClickHouse creates a pooled ClickHouse connection and pings it.
func OpenClickHouse(ctx context.Context, t Target) (*ClickHouseBackend, error) {
	opts := &clickhouse.Options{
		Addr: []string{t.Addr},
		Auth: clickhouse.Auth{
			Database: t.Database,
			Username: t.Username,
			Password: t.Password,
		},
		DialTimeout:     5 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
	if t.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &ClickHouseBackend{conn: conn, database: t.Database}, nil
}

func (b *ClickHouseBackend) Dialect() Dialect { return DialectClickHouse }

func (b *ClickHouseBackend) Close() error { return b.conn.Close() }

// Query runs a statement. Values are scanned into properly typed holders
// derived from the column scan types, then dereferenced into the row maps.
func (b *ClickHouseBackend) Query(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error) {
	rows, err := b.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	columns := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
	}

	var resultRows []map[string]any
	for rows.Next() {
		values := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			values[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(values...); err != nil {
			return nil, nil, fmt.Errorf("scan error: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = reflect.ValueOf(values[i]).Elem().Interface()
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return columns, resultRows, nil
}

// Tables lists the non-staging tables of the configured database.
func (b *ClickHouseBackend) Tables(ctx context.Context) ([]string, error) {
	rows, err := b.conn.Query(ctx, `
		SELECT name
		FROM system.tables
		WHERE database = $1
		  AND name NOT LIKE 'stg_%'
		ORDER BY name
	`, b.database)
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

// FetchSchema retrieves table columns and view definitions from the system
// tables and renders them as readable text.
func (b *ClickHouseBackend) FetchSchema(ctx context.Context) (string, error) {
	rows, err := b.conn.Query(ctx, `
		SELECT
			table,
			name,
			type
		FROM system.columns
		WHERE database = $1
		  AND table NOT LIKE 'stg_%'
		ORDER BY table, position
	`, b.database)
	if err != nil {
		return "", fmt.Errorf("failed to fetch columns: %w", err)
	}
	defer rows.Close()

	type columnInfo struct {
		Table string
		Name  string
		Type  string
	}
	var columns []columnInfo
	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.Table, &c.Name, &c.Type); err != nil {
			return "", err
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	viewRows, err := b.conn.Query(ctx, `
		SELECT
			name,
			as_select
		FROM system.tables
		WHERE database = $1
		  AND engine = 'View'
		  AND name NOT LIKE 'stg_%'
	`, b.database)
	if err != nil {
		return "", fmt.Errorf("failed to fetch views: %w", err)
	}
	defer viewRows.Close()

	viewDefs := make(map[string]string)
	for viewRows.Next() {
		var name, asSelect string
		if err := viewRows.Scan(&name, &asSelect); err != nil {
			return "", err
		}
		viewDefs[name] = asSelect
	}
	if err := viewRows.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Database Schema: " + b.database + "\n\n")
	currentTable := ""
	for _, col := range columns {
		if col.Table != currentTable {
			if currentTable != "" {
				if def, ok := viewDefs[currentTable]; ok {
					sb.WriteString("  Definition: " + def + "\n")
				}
				sb.WriteString("\n")
			}
			currentTable = col.Table
			if _, isView := viewDefs[col.Table]; isView {
				sb.WriteString("Table: " + col.Table + " (VIEW)\nColumns:\n")
			} else {
				sb.WriteString("Table: " + col.Table + "\nColumns:\n")
			}
		}
		sb.WriteString("  - " + col.Name + " (" + col.Type + ")\n")
	}
	if def, ok := viewDefs[currentTable]; ok {
		sb.WriteString("  Definition: " + def + "\n")
	}

	return sb.String(), nil
}

var _ Backend = (*ClickHouseBackend)(nil)
