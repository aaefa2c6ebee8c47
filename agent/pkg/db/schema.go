package db

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// SchemaDoc is a curated YAML schema description. It carries the column
// commentary that live introspection cannot provide, and renders in the same
// "Database Schema:" / "Table:" / "Columns:" shape the introspected schemas
// use.
type SchemaDoc struct {
	Database    string     `yaml:"database"`
	Description string     `yaml:"description"`
	Tables      []TableDoc `yaml:"tables"`
}

// TableDoc describes one table.
type TableDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Columns     []ColumnDoc `yaml:"columns"`
}

// ColumnDoc describes one column.
type ColumnDoc struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// LoadSchemaDoc reads a YAML schema description file.
func LoadSchemaDoc(path string) (*SchemaDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema description: %w", err)
	}
	return ParseSchemaDoc(data)
}

// ParseSchemaDoc parses YAML schema description bytes.
func ParseSchemaDoc(data []byte) (*SchemaDoc, error) {
	var doc SchemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema description: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("schema description defines no tables")
	}
	return &doc, nil
}

// Render produces the readable schema text.
func (d *SchemaDoc) Render() string {
	var sb strings.Builder

	sb.WriteString("Database Schema:")
	if d.Database != "" {
		sb.WriteString(" " + d.Database)
	}
	sb.WriteString("\n")
	if d.Description != "" {
		sb.WriteString(d.Description + "\n")
	}
	sb.WriteString("\n")

	for i, table := range d.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Table: " + table.Name + "\n")
		if table.Description != "" {
			sb.WriteString("  " + table.Description + "\n")
		}
		sb.WriteString("Columns:\n")
		for _, col := range table.Columns {
			line := "  - " + col.Name
			if col.Type != "" {
				line += " (" + col.Type + ")"
			}
			if col.Description != "" {
				line += ": " + col.Description
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

// StaticSchemaFetcher serves a schema description without touching the
// database. It implements workflow.SchemaFetcher.
type StaticSchemaFetcher struct {
	doc *SchemaDoc
}

// NewStaticSchemaFetcher wraps a schema description.
func NewStaticSchemaFetcher(doc *SchemaDoc) *StaticSchemaFetcher {
	return &StaticSchemaFetcher{doc: doc}
}

func (f *StaticSchemaFetcher) FetchSchema(_ context.Context) (string, error) {
	return f.doc.Render(), nil
}

var _ workflow.SchemaFetcher = (*StaticSchemaFetcher)(nil)
