package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Node names a state in the workflow graph.
type Node string

const (
	NodeFetchSchema    Node = "fetch_schema"
	NodePrepareQuery   Node = "prepare_query"
	NodeInvokeAgent    Node = "invoke_agent"
	NodeClassifyOutput Node = "classify_output"
	NodeValidateSQL    Node = "validate_sql"
	NodeIncrementRetry Node = "increment_retry"
	NodeExecuteSQL     Node = "execute_sql"
	NodeHandleError    Node = "handle_error"
	NodeFormatResponse Node = "format_response"
	NodeDone           Node = "done"
)

const (
	// MaxRetries bounds SQL regeneration after invalid validation verdicts.
	MaxRetries = 2

	// maxSteps bounds the driver loop. The graph's only backward edge is the
	// bounded retry, so a well-formed run never comes close.
	maxSteps = 64
)

// Config holds the dependencies and parameters of a workflow instance.
type Config struct {
	Logger        *slog.Logger
	Clock         clockwork.Clock
	Agent         Agent
	Validator     Validator
	Executor      Executor
	SchemaFetcher SchemaFetcher
	Prompts       *Prompts
	Formatter     Formatter // optional LLM-backed final formatting
	Tools         []Tool    // tool set handed to the agent

	// SchemaContext is appended to every fetched schema description. The TCR
	// variant uses it to add domain guidance.
	SchemaContext string

	// StaticSchema marks the schema as domain-static: it is fetched once and
	// reused, and the retry edge re-enters at PrepareQuery instead of
	// FetchSchema.
	StaticSchema bool

	// MaxRetries overrides the default retry ceiling when > 0. A negative
	// value disables retries entirely; zero means the default.
	MaxRetries int
}

// Workflow is the orchestrator: a directed graph of steps with conditional
// transitions over a shared per-run State. A single Workflow is safe for
// concurrent runs; each run owns an exclusive State.
type Workflow struct {
	cfg Config

	mu           sync.Mutex
	cachedSchema string // populated once when StaticSchema is set
}

// New creates a workflow instance.
func New(cfg Config) (*Workflow, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.SchemaFetcher == nil {
		return nil, fmt.Errorf("schema fetcher is required")
	}
	if cfg.Prompts == nil {
		p, err := LoadPrompts()
		if err != nil {
			return nil, err
		}
		cfg.Prompts = p
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = MaxRetries
	}
	return &Workflow{cfg: cfg}, nil
}

// logInfo logs an info message if a logger is configured.
func (w *Workflow) logInfo(msg string, args ...any) {
	if w.cfg.Logger != nil {
		w.cfg.Logger.Info(msg, args...)
	}
}

// RunResult holds the outcome of one workflow run.
type RunResult struct {
	RunID   uuid.UUID
	Answer  string // the final assistant message
	State   *State // terminal state, for inspection
	Path    []Node // nodes visited, in order
	Elapsed time.Duration
}

// Ask runs the workflow for a single user question.
func (w *Workflow) Ask(ctx context.Context, question string) (*RunResult, error) {
	return w.Run(ctx, []Message{{Role: RoleUser, Content: question}})
}

// Run executes the workflow over an existing conversation. The run always
// terminates through FormatResponse: failures surface in the final message,
// never as a bare error, unless the graph itself is broken or the context is
// canceled.
func (w *Workflow) Run(ctx context.Context, conversation []Message) (*RunResult, error) {
	start := w.cfg.Clock.Now()
	st := NewState(conversation)

	w.logInfo("workflow: run started", "run_id", st.RunID)

	node := NodeFetchSchema
	path := make([]Node, 0, 16)

	for node != NodeDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(path) >= maxSteps {
			return nil, fmt.Errorf("workflow exceeded %d steps without terminating (last node %s)", maxSteps, node)
		}
		path = append(path, node)

		patch, next := w.step(ctx, node, st)
		st.apply(patch)

		if w.cfg.Logger != nil {
			w.cfg.Logger.Debug("workflow: transition", "run_id", st.RunID, "from", node, "to", next)
		}
		node = next
	}

	result := &RunResult{
		RunID:   st.RunID,
		Answer:  st.FinalMessage(),
		State:   st,
		Path:    path,
		Elapsed: w.cfg.Clock.Since(start),
	}

	w.logInfo("workflow: run complete",
		"run_id", st.RunID,
		"steps", len(path),
		"retries", st.RetryCount,
		"error_kind", st.ErrorKind,
		"elapsed", result.Elapsed)

	return result, nil
}

// step dispatches one node. Each node is a function from the current state to
// a state patch plus the next node; the transition table lives in the
// decision helpers below.
func (w *Workflow) step(ctx context.Context, node Node, st *State) (Patch, Node) {
	switch node {
	case NodeFetchSchema:
		return w.fetchSchema(ctx, st)
	case NodePrepareQuery:
		return w.prepareQuery(st)
	case NodeInvokeAgent:
		return w.invokeAgent(ctx, st)
	case NodeClassifyOutput:
		return w.classifyOutput(st)
	case NodeValidateSQL:
		return w.validateSQL(ctx, st)
	case NodeIncrementRetry:
		return w.incrementRetry(st)
	case NodeExecuteSQL:
		return w.executeSQL(ctx, st)
	case NodeHandleError:
		return w.handleError(st)
	case NodeFormatResponse:
		return w.formatResponse(ctx, st)
	default:
		return failure(ErrUnrecognizedOutput, fmt.Sprintf("unknown workflow node: %s", node)), NodeFormatResponse
	}
}

// retryReentry is where IncrementRetry hands control back. A domain-static
// schema skips the re-fetch.
func (w *Workflow) retryReentry() Node {
	if w.cfg.StaticSchema {
		return NodePrepareQuery
	}
	return NodeFetchSchema
}
