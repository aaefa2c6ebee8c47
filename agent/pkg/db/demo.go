package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var demoMigrationsFS embed.FS

// slogGooseLogger adapts slog.Logger to goose.Logger interface
type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// OpenDemo opens (creating if needed) the demo immune-repertoire database at
// path and migrates it to the latest schema with goose. ":memory:" gives a
// throwaway copy, which the tests use.
func OpenDemo(ctx context.Context, log *slog.Logger, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open demo database: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := migrateDemo(ctx, log, db); err != nil {
		db.Close()
		return nil, err
	}

	return WrapSQLite(db), nil
}

func migrateDemo(ctx context.Context, log *slog.Logger, db *sql.DB) error {
	if log != nil {
		goose.SetLogger(&slogGooseLogger{log: log})
	}
	goose.SetBaseFS(demoMigrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run demo migrations: %w", err)
	}
	return nil
}
