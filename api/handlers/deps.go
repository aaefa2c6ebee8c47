// Package handlers implements the HTTP handlers of the data team API.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/tcrlabs/datateam/agent/pkg/db"
	"github.com/tcrlabs/datateam/agent/pkg/workflow"
	"github.com/tcrlabs/datateam/api/metrics"
)

// Runner runs one workflow conversation. Both workflow variants satisfy it;
// tests substitute stubs.
type Runner interface {
	Run(ctx context.Context, conversation []workflow.Message) (*workflow.RunResult, error)
}

// Deps holds the shared handler dependencies, set once at startup.
type Deps struct {
	Logger   *slog.Logger
	Backend  db.Backend
	Executor workflow.Executor

	// Standard answers general questions; TCR is the immune-repertoire
	// variant. TCR may be nil when the deployment has no TCR dataset.
	Standard Runner
	TCR      Runner
}

var deps Deps

// Init wires the handler dependencies.
func Init(d Deps) {
	deps = d
}

// InstrumentBackend wraps a backend so every query lands in the Prometheus
// histograms.
func InstrumentBackend(b db.Backend) db.Backend {
	return &instrumentedBackend{Backend: b}
}

type instrumentedBackend struct {
	db.Backend
}

func (b *instrumentedBackend) Query(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error) {
	start := time.Now()
	columns, rows, err := b.Backend.Query(ctx, sql, args...)
	metrics.RecordDBQuery(string(b.Backend.Dialect()), time.Since(start), err)
	return columns, rows, err
}
