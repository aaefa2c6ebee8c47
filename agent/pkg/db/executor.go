package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// Executor runs validated SQL against a backend and packages the result for
// the workflow. It implements workflow.Executor.
type Executor struct {
	backend Backend
	store   ResultStore
	// spillThreshold is the row count above which the full result set is
	// persisted through the store; 0 disables spilling.
	spillThreshold int
	logger         *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithResultStore persists result sets larger than threshold rows and
// records the location on the result.
func WithResultStore(store ResultStore, threshold int) ExecutorOption {
	return func(e *Executor) {
		e.store = store
		e.spillThreshold = threshold
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor over the backend.
func NewExecutor(backend Backend, opts ...ExecutorOption) *Executor {
	e := &Executor{backend: backend}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query executes one statement and returns the tabular result with a
// human-readable rendering attached.
func (e *Executor) Query(ctx context.Context, sqlText string) (workflow.QueryResult, error) {
	sqlText = strings.TrimSuffix(strings.TrimSpace(sqlText), ";")
	if sqlText == "" {
		return workflow.QueryResult{}, fmt.Errorf("empty SQL statement")
	}

	start := time.Now()
	columns, rows, err := e.backend.Query(ctx, sqlText)
	duration := time.Since(start)
	if err != nil {
		return workflow.QueryResult{}, err
	}

	if e.logger != nil {
		e.logger.Debug("db: query executed",
			"dialect", e.backend.Dialect(), "rows", len(rows), "duration", duration)
	}

	SanitizeRows(rows)

	result := workflow.QueryResult{
		SQL:       sqlText,
		Columns:   columns,
		Rows:      rows,
		Count:     len(rows),
		Formatted: FormatRows(columns, rows),
	}

	if e.store != nil && e.spillThreshold > 0 && result.Count > e.spillThreshold {
		name := fmt.Sprintf("result-%d.csv", time.Now().UnixNano())
		location, err := e.store.Save(ctx, name, EncodeCSV(columns, rows))
		if err != nil {
			// Spilling is best effort; the inline rendering still stands.
			if e.logger != nil {
				e.logger.Warn("db: failed to persist result set", "error", err)
			}
		} else {
			result.SavedTo = location
		}
	}

	return result, nil
}

var _ workflow.Executor = (*Executor)(nil)
