// Package db is the multi-backend database layer: ClickHouse, Postgres and
// SQLite backends behind one interface, schema introspection, random table
// sampling, result formatting, and the demo dataset.
package db

import (
	"context"
	"fmt"
)

// Dialect identifies a SQL backend flavor.
type Dialect string

const (
	DialectClickHouse Dialect = "clickhouse"
	DialectPostgres   Dialect = "postgres"
	DialectSQLite     Dialect = "sqlite"
)

// Backend is a queryable database. Implementations pool connections
// internally and are safe for concurrent use.
type Backend interface {
	// Dialect reports the backend's SQL flavor.
	Dialect() Dialect

	// Query runs a statement and returns column names plus rows as maps.
	Query(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error)

	// Tables lists the user-visible table names.
	Tables(ctx context.Context) ([]string, error)

	// FetchSchema returns a deterministic, readable description of the
	// schema: tables, columns, types and constraints.
	FetchSchema(ctx context.Context) (string, error)

	// Close releases the connection pool.
	Close() error
}

// Open connects to the target described by t.
func Open(ctx context.Context, t Target) (Backend, error) {
	switch Dialect(t.Driver) {
	case DialectClickHouse:
		return OpenClickHouse(ctx, t)
	case DialectPostgres:
		return OpenPostgres(ctx, t)
	case DialectSQLite:
		return OpenSQLite(ctx, t)
	default:
		return nil, fmt.Errorf("unknown database driver %q (want clickhouse, postgres or sqlite)", t.Driver)
	}
}
