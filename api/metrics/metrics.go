// Package metrics holds the Prometheus instrumentation for the API and the
// workflow it fronts.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildInfo carries version labels, set once at startup.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "datateam_build_info",
		Help: "Build information.",
	}, []string{"version", "commit", "date"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datateam_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datateam_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	workflowRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datateam_workflow_runs_total",
		Help: "Workflow runs by outcome (ok or the error kind).",
	}, []string{"variant", "outcome"})

	workflowRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datateam_workflow_run_duration_seconds",
		Help:    "End-to-end workflow run duration.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"variant"})

	workflowRetries = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datateam_workflow_retries",
		Help:    "Validation retries consumed per run.",
		Buckets: []float64{0, 1, 2},
	}, []string{"variant"})

	dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datateam_db_query_duration_seconds",
		Help:    "Database query duration by dialect.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dialect", "status"})
)

// RecordWorkflowRun records one completed workflow run.
func RecordWorkflowRun(variant, outcome string, retries int, elapsed time.Duration) {
	if outcome == "" {
		outcome = "ok"
	}
	workflowRunsTotal.WithLabelValues(variant, outcome).Inc()
	workflowRunDuration.WithLabelValues(variant).Observe(elapsed.Seconds())
	workflowRetries.WithLabelValues(variant).Observe(float64(retries))
}

// RecordDBQuery records one database query.
func RecordDBQuery(dialect string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	dbQueryDuration.WithLabelValues(dialect, status).Observe(duration.Seconds())
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware instruments every request with count and duration, labeled by
// the chi route pattern so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
