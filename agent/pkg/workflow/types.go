package workflow

import (
	"context"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the conversation threaded through a run.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"` // optional author tag, e.g. "data_analyst"
}

// Agent is the tool-calling agent consumed as a black box: prompt in, final
// free-text message out. It may invoke any subset of the provided tools any
// number of times before returning; those calls are opaque to the
// orchestrator.
type Agent interface {
	Run(ctx context.Context, prompt string, tools []Tool) (string, error)
}

// ValidationStatus is the verdict of the SQL validator.
type ValidationStatus string

const (
	ValidationUnset   ValidationStatus = ""
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationError   ValidationStatus = "error"
)

// Verdict holds the structured validator output.
// Feedback must be non-empty when Status != valid.
type Verdict struct {
	Status   ValidationStatus `json:"status"`
	Feedback string           `json:"feedback"`
}

// Validator judges whether generated SQL is appropriate given the schema and
// the user's question. A returned error means the validation call itself
// failed (transport, provider); semantic invalidity is reported via the
// Verdict, not the error.
type Validator interface {
	Validate(ctx context.Context, schema, question, sql string) (Verdict, error)
}

// Executor runs SQL and returns tabular results. Implementations must reject
// statements they cannot run rather than silently truncating. The
// orchestrator only calls Query after the validator returned valid.
type Executor interface {
	Query(ctx context.Context, sql string) (QueryResult, error)
}

// SchemaFetcher retrieves a deterministic, readable description of the
// database schema: tables, columns, types and constraints.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) (string, error)
}

// Formatter optionally rewrites the final user-facing message. Any error
// falls back to the deterministic formatting, so implementations are free to
// be best-effort.
type Formatter interface {
	FormatResponse(ctx context.Context, req FormatRequest) (string, error)
}

// FormatRequest carries everything the response formatter may use.
type FormatRequest struct {
	Question     string
	QueryType    string // "schema_request", "data_query", "error", "validation_failure"
	RawResults   string
	GeneratedSQL string
	ErrorMessage string
}

// ToolHandler executes a tool invocation. Parameters are the decoded JSON
// arguments from the model.
type ToolHandler func(ctx context.Context, params map[string]any) (string, error)

// Tool pairs a definition the model sees with the handler that runs it.
type Tool struct {
	Name        string
	Description string
	InputSchema any // JSON Schema for parameters
	Handler     ToolHandler
}

// QueryResult holds the result of a query execution.
type QueryResult struct {
	SQL       string
	Columns   []string
	Rows      []map[string]any
	Count     int
	Formatted string // human-readable formatted result
	SavedTo   string // set when the full result set was persisted out of band
}
