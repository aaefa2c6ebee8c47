package db

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Target describes one database connection.
type Target struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"` // clickhouse, postgres or sqlite
	Addr     string `yaml:"addr"`   // clickhouse host:port
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Secure   bool   `yaml:"secure"` // TLS (ClickHouse Cloud, port 9440)
	DSN      string `yaml:"dsn"`    // postgres connection string
	Path     string `yaml:"path"`   // sqlite file path

	// SchemaFile optionally points to a YAML schema description used instead
	// of live introspection.
	SchemaFile string `yaml:"schema_file"`
}

// Config is the multi-database target file.
type Config struct {
	Default   string   `yaml:"default"`
	Databases []Target `yaml:"databases"`
}

// LoadConfig reads a YAML target file. ${VAR} references in the file are
// expanded from the environment so credentials stay out of the file itself.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML target config bytes.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("database config defines no databases")
	}
	if cfg.Default == "" {
		cfg.Default = cfg.Databases[0].Name
	}
	return &cfg, nil
}

// Target returns the named target, or the default when name is empty.
func (c *Config) Target(name string) (Target, error) {
	if name == "" {
		name = c.Default
	}
	for _, t := range c.Databases {
		if t.Name == name {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown database target %q", name)
}

// TargetFromEnv builds a ClickHouse target from CLICKHOUSE_* environment
// variables, for deployments that skip the YAML file.
func TargetFromEnv() Target {
	t := Target{
		Name:     "default",
		Driver:   string(DialectClickHouse),
		Addr:     os.Getenv("CLICKHOUSE_ADDR_TCP"),
		Database: os.Getenv("CLICKHOUSE_DATABASE"),
		Username: os.Getenv("CLICKHOUSE_USERNAME"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Secure:   os.Getenv("CLICKHOUSE_SECURE") == "true",
	}
	if t.Addr == "" {
		t.Addr = "localhost:9000"
	}
	if t.Database == "" {
		t.Database = "default"
	}
	if t.Username == "" {
		t.Username = "default"
	}
	return t
}
