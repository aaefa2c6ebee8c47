package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/tcrlabs/datateam/agent/pkg/db"
	"github.com/tcrlabs/datateam/agent/pkg/llm"
	"github.com/tcrlabs/datateam/agent/pkg/workflow"
	"github.com/tcrlabs/datateam/agent/pkg/workflow/tcr"
	"github.com/tcrlabs/datateam/api/config"
	"github.com/tcrlabs/datateam/api/handlers"
	"github.com/tcrlabs/datateam/api/metrics"
	"github.com/tcrlabs/datateam/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// shuttingDown is set when a shutdown signal is received. The readiness
	// probe checks it to immediately return 503.
	shuttingDown atomic.Bool
)

const defaultMetricsAddr = "0.0.0.0:0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	flag.Parse()

	log := logger.New(*verboseFlag)
	log.Info("starting datateam-api", "version", version, "commit", commit, "date", date)
	handlers.SetBuildInfo(version, commit, date)

	// godotenv doesn't override existing env vars, so later files don't
	// overwrite earlier ones.
	_ = godotenv.Load()
	_ = godotenv.Load("api/.env")

	sentryDSN := os.Getenv("SENTRY_DSN")
	if sentryDSN != "" {
		sentryEnv := os.Getenv("SENTRY_ENVIRONMENT")
		if sentryEnv == "" {
			sentryEnv = "development"
		}
		release := version
		if commit != "none" {
			release = version + "-" + commit
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryDSN,
			Environment: sentryEnv,
			Release:     release,
		}); err != nil {
			log.Warn("sentry initialization failed", "error", err)
		} else {
			log.Info("sentry initialized", "env", sentryEnv, "release", release)
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	if err := config.Load(ctx, log); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer func() { _ = config.Close() }()

	standard, tcrRunner, executor, err := buildWorkflows(ctx, log)
	if err != nil {
		return err
	}

	handlers.Init(handlers.Deps{
		Logger:   log,
		Backend:  config.Backend,
		Executor: executor,
		Standard: standard,
		TCR:      tcrRunner,
	})

	// Start metrics server
	var metricsServer *http.Server
	if addr := *metricsAddrFlag; addr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Warn("failed to start prometheus metrics listener", "error", err)
		} else {
			log.Info("prometheus metrics server listening", "addr", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer = &http.Server{Handler: mux}
			go func() {
				if err := metricsServer.Serve(listener); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	// Sentry middleware before Recoverer so panics are captured.
	if sentryDSN != "" {
		sentryHandler := sentryhttp.New(sentryhttp.Options{
			Repanic: true,
		})
		r.Use(sentryHandler.Handle)
	}

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	corsOrigins := []string{"*"}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if shuttingDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("shutting down"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := config.Backend.Tables(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database connection failed: " + err.Error()))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/version", handlers.GetVersion)
	r.Post("/api/ask", handlers.Ask)
	r.Post("/api/query", handlers.ExecuteQuery)
	r.Get("/api/schema", handlers.GetSchema)

	server := &http.Server{
		Addr:         ":" + config.Cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // workflow runs can take minutes
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// http.Server.Shutdown does not cancel request contexts; a cancellable
	// base context lets in-flight workflow runs stop during shutdown.
	serverCtx, serverCancel := context.WithCancel(context.Background())
	server.BaseContext = func(_ net.Listener) context.Context {
		return serverCtx
	}

	go func() {
		log.Info("API server starting", "port", config.Cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdown
	log.Info("shutdown signal received")
	shuttingDown.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed, forcing close", "error", err)
		serverCancel()
		_ = server.Close()
	} else {
		serverCancel()
	}

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	log.Info("server stopped")
	return nil
}

// buildWorkflows wires the LLM client, executor and both workflow variants
// against the loaded configuration.
func buildWorkflows(ctx context.Context, log *slog.Logger) (standard, tcrRunner handlers.Runner, executor workflow.Executor, err error) {
	prompts, err := workflow.LoadPrompts()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	clientOpts := []llm.ClientOption{llm.WithLogger(log)}
	if config.Cfg.AnthropicModel != "" {
		clientOpts = append(clientOpts, llm.WithModel(config.Cfg.AnthropicModel))
	}
	client := llm.NewClient(clientOpts...)

	agent := llm.NewToolAgent(client)
	validator, err := llm.NewSQLValidator(client, prompts)
	if err != nil {
		return nil, nil, nil, err
	}
	formatter, err := llm.NewResponseFormatter(client, prompts)
	if err != nil {
		return nil, nil, nil, err
	}

	backend := handlers.InstrumentBackend(config.Backend)

	store, err := buildResultStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	exec := db.NewExecutor(backend,
		db.WithExecutorLogger(log),
		db.WithResultStore(store, config.Cfg.SpillThreshold),
	)

	var fetcher workflow.SchemaFetcher = backend
	if config.Cfg.SchemaFile != "" {
		doc, err := db.LoadSchemaDoc(config.Cfg.SchemaFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load schema file: %w", err)
		}
		fetcher = db.NewStaticSchemaFetcher(doc)
	}

	base := workflow.Config{
		Logger:        log,
		Agent:         agent,
		Validator:     validator,
		Executor:      exec,
		SchemaFetcher: fetcher,
		Prompts:       prompts,
		Formatter:     formatter,
		Tools:         []workflow.Tool{db.SampleTool(backend)},
	}

	std, err := workflow.New(base)
	if err != nil {
		return nil, nil, nil, err
	}
	tcrWF, err := tcr.New(base)
	if err != nil {
		return nil, nil, nil, err
	}

	return std, tcrWF, exec, nil
}

func buildResultStore(ctx context.Context) (db.ResultStore, error) {
	if config.Cfg.S3Bucket != "" {
		return db.NewS3Store(ctx, db.S3StoreConfig{
			Bucket: config.Cfg.S3Bucket,
			Region: config.Cfg.S3Region,
			Prefix: config.Cfg.S3Prefix,
		})
	}
	return db.NewLocalStore(config.Cfg.ResultsDir)
}
