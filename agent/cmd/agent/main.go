package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/tcrlabs/datateam/agent/pkg/db"
	"github.com/tcrlabs/datateam/agent/pkg/llm"
	"github.com/tcrlabs/datateam/agent/pkg/workflow"
	"github.com/tcrlabs/datateam/agent/pkg/workflow/tcr"
	"github.com/tcrlabs/datateam/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	questionFlag := flag.StringP("question", "q", "", "natural-language question to answer (required)")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	demoFlag := flag.Bool("demo", false, "run against the embedded demo database")
	demoPathFlag := flag.String("demo-path", ":memory:", "SQLite path for the demo database")
	dbConfigFlag := flag.String("db-config", "", "path to the YAML database targets file")
	targetFlag := flag.String("target", "", "named target inside the db-config file")
	schemaFileFlag := flag.String("schema-file", "", "curated YAML schema description to use instead of live introspection")
	tcrFlag := flag.Bool("tcr", false, "use the immune-repertoire workflow variant")
	modelFlag := flag.String("model", "", "Anthropic model override")
	resultsDirFlag := flag.String("results-dir", os.TempDir(), "directory for spilled large result sets")
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(*verboseFlag)

	if *questionFlag == "" {
		flag.Usage()
		return fmt.Errorf("--question is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, log, *demoFlag, *demoPathFlag, *dbConfigFlag, *targetFlag)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	clientOpts := []llm.ClientOption{llm.WithLogger(log)}
	if *modelFlag != "" {
		clientOpts = append(clientOpts, llm.WithModel(*modelFlag))
	}
	client := llm.NewClient(clientOpts...)

	prompts, err := workflow.LoadPrompts()
	if err != nil {
		return err
	}
	validator, err := llm.NewSQLValidator(client, prompts)
	if err != nil {
		return err
	}
	formatter, err := llm.NewResponseFormatter(client, prompts)
	if err != nil {
		return err
	}

	store, err := db.NewLocalStore(*resultsDirFlag)
	if err != nil {
		return err
	}
	executor := db.NewExecutor(backend,
		db.WithExecutorLogger(log),
		db.WithResultStore(store, 200),
	)

	var fetcher workflow.SchemaFetcher = backend
	if *schemaFileFlag != "" {
		doc, err := db.LoadSchemaDoc(*schemaFileFlag)
		if err != nil {
			return err
		}
		fetcher = db.NewStaticSchemaFetcher(doc)
	}

	cfg := workflow.Config{
		Logger:        log,
		Agent:         llm.NewToolAgent(client),
		Validator:     validator,
		Executor:      executor,
		SchemaFetcher: fetcher,
		Prompts:       prompts,
		Formatter:     formatter,
		Tools:         []workflow.Tool{db.SampleTool(backend)},
	}

	var wf *workflow.Workflow
	if *tcrFlag {
		wf, err = tcr.New(cfg)
	} else {
		wf, err = workflow.New(cfg)
	}
	if err != nil {
		return err
	}

	result, err := wf.Ask(ctx, *questionFlag)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)

	if result.State.ErrorKind != workflow.ErrNone {
		log.Warn("run ended with an error",
			"error_kind", result.State.ErrorKind,
			"retries", result.State.RetryCount)
		os.Exit(2)
	}
	return nil
}

func openBackend(ctx context.Context, log *slog.Logger, demo bool, demoPath, configFile, targetName string) (db.Backend, error) {
	switch {
	case demo:
		log.Info("provisioning demo database", "path", demoPath)
		return db.OpenDemo(ctx, log, demoPath)

	case configFile != "":
		cfg, err := db.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		target, err := cfg.Target(targetName)
		if err != nil {
			return nil, err
		}
		log.Info("connecting to database", "target", target.Name, "driver", target.Driver)
		return db.Open(ctx, target)

	default:
		target := db.TargetFromEnv()
		log.Info("connecting to database", "target", target.Name, "driver", target.Driver, "addr", target.Addr)
		return db.Open(ctx, target)
	}
}
