// Package config loads the API configuration from the environment and owns
// the process-wide database backend.
package config

import (
	"context"
	"log/slog"
	"os"

	"github.com/tcrlabs/datateam/agent/pkg/db"
)

// Backend is the global database backend the handlers query.
var Backend db.Backend

// Settings holds the parsed API configuration.
type Settings struct {
	Port        string
	MetricsAddr string

	// AnthropicModel overrides the default model when set.
	AnthropicModel string

	// DBConfigFile points to the YAML multi-database target file. When unset,
	// DemoDBPath or CLICKHOUSE_* env vars are used instead.
	DBConfigFile string
	DBTarget     string
	DemoDBPath   string

	// SchemaFile optionally points to a curated YAML schema description used
	// instead of live introspection.
	SchemaFile string

	// Result spilling: local directory, or an S3 bucket when set.
	ResultsDir     string
	SpillThreshold int
	S3Bucket       string
	S3Region       string
	S3Prefix       string
}

// Cfg is the loaded configuration.
var Cfg Settings

// Load parses the environment and connects the database backend.
func Load(ctx context.Context, log *slog.Logger) error {
	Cfg = Settings{
		Port:           getenv("PORT", "8080"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
		AnthropicModel: os.Getenv("ANTHROPIC_MODEL"),
		DBConfigFile:   os.Getenv("DB_CONFIG_FILE"),
		DBTarget:       os.Getenv("DB_TARGET"),
		DemoDBPath:     os.Getenv("DEMO_DB_PATH"),
		SchemaFile:     os.Getenv("SCHEMA_FILE"),
		ResultsDir:     getenv("RESULTS_DIR", os.TempDir()),
		SpillThreshold: 200,
		S3Bucket:       os.Getenv("RESULTS_S3_BUCKET"),
		S3Region:       os.Getenv("RESULTS_S3_REGION"),
		S3Prefix:       os.Getenv("RESULTS_S3_PREFIX"),
	}

	backend, err := openBackend(ctx, log)
	if err != nil {
		return err
	}
	Backend = backend
	return nil
}

func openBackend(ctx context.Context, log *slog.Logger) (db.Backend, error) {
	switch {
	case Cfg.DBConfigFile != "":
		cfg, err := db.LoadConfig(Cfg.DBConfigFile)
		if err != nil {
			return nil, err
		}
		target, err := cfg.Target(Cfg.DBTarget)
		if err != nil {
			return nil, err
		}
		log.Info("connecting to database", "target", target.Name, "driver", target.Driver)
		return db.Open(ctx, target)

	case Cfg.DemoDBPath != "":
		log.Info("provisioning demo database", "path", Cfg.DemoDBPath)
		return db.OpenDemo(ctx, log, Cfg.DemoDBPath)

	default:
		target := db.TargetFromEnv()
		log.Info("connecting to database", "target", target.Name, "driver", target.Driver, "addr", target.Addr)
		return db.Open(ctx, target)
	}
}

// Close releases the database backend.
func Close() error {
	if Backend != nil {
		return Backend.Close()
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
