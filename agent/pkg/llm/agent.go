package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// DefaultMaxIterations bounds the tool-calling loop.
const DefaultMaxIterations = 10

// ToolAgent runs an Anthropic tool-calling loop and returns the model's final
// free-text message. It implements workflow.Agent: the orchestrator hands it
// a prompt and a tool set and treats everything in between as opaque.
type ToolAgent struct {
	client        *Client
	system        string
	maxIterations int
}

// ToolAgentOption configures a ToolAgent.
type ToolAgentOption func(*ToolAgent)

// WithSystemPrompt sets the system prompt for every run.
func WithSystemPrompt(system string) ToolAgentOption {
	return func(a *ToolAgent) {
		a.system = system
	}
}

// WithMaxIterations overrides the loop bound.
func WithMaxIterations(n int) ToolAgentOption {
	return func(a *ToolAgent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// NewToolAgent creates a tool-calling agent on top of the client.
func NewToolAgent(client *Client, opts ...ToolAgentOption) *ToolAgent {
	a := &ToolAgent{
		client:        client,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the tool-calling loop: call the model, run any requested
// tools, feed the results back, and repeat until the model answers without
// tool calls or the iteration budget runs out.
func (a *ToolAgent) Run(ctx context.Context, prompt string, tools []workflow.Tool) (string, error) {
	handlers := make(map[string]workflow.ToolHandler, len(tools))
	for _, t := range tools {
		handlers[t.Name] = t.Handler
	}
	toolParams := convertTools(tools)

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}

	var lastText string
	for iteration := 0; iteration < a.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		params := a.client.newParams(a.system, messages)
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		resp, err := a.client.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("agent LLM call failed: %w", err)
		}

		text := ""
		var calls []anthropic.ContentBlockUnion
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text += block.Text
			case "tool_use":
				calls = append(calls, block)
			}
		}
		if text != "" {
			lastText = text
		}

		a.client.logInfo("agent: LLM response",
			"iteration", iteration+1,
			"stopReason", resp.StopReason,
			"toolCalls", len(calls))

		if len(calls) == 0 {
			return lastText, nil
		}

		messages = append(messages, resp.ToParam())

		// Tool results go back as a single user message; tool execution
		// errors are reported to the model, not surfaced to the caller.
		results := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
		for _, call := range calls {
			results = append(results, a.runTool(ctx, handlers, call))
		}

		// Warn model on penultimate iteration
		if iteration == a.maxIterations-2 {
			results = append(results, anthropic.NewTextBlock(
				"[System: This is your second-to-last turn. Please provide your final answer now.]"))
		}

		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: results,
		})
	}

	if lastText == "" {
		return "", fmt.Errorf("agent produced no final answer within %d iterations", a.maxIterations)
	}
	return lastText, nil
}

func (a *ToolAgent) runTool(ctx context.Context, handlers map[string]workflow.ToolHandler, call anthropic.ContentBlockUnion) anthropic.ContentBlockParamUnion {
	handler, ok := handlers[call.Name]
	if !ok {
		return anthropic.NewToolResultBlock(call.ID, fmt.Sprintf("Error: unknown tool %q", call.Name), true)
	}

	var args map[string]any
	if len(call.Input) > 0 {
		if err := json.Unmarshal([]byte(call.Input), &args); err != nil {
			return anthropic.NewToolResultBlock(call.ID, fmt.Sprintf("Error: invalid tool arguments: %s", err), true)
		}
	}

	a.client.logInfo("agent: executing tool", "tool", call.Name)
	result, err := handler(ctx, args)
	if err != nil {
		return anthropic.NewToolResultBlock(call.ID, fmt.Sprintf("Error: %s", err), true)
	}
	return anthropic.NewToolResultBlock(call.ID, result, false)
}

// convertTools translates tool definitions into SDK params. InputSchema is a
// full JSON Schema object; the SDK wants its properties and required lists
// split out.
func convertTools(tools []workflow.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		properties, required := splitSchema(t.InputSchema)
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return result
}

func splitSchema(schema any) (any, []string) {
	m, ok := schema.(map[string]any)
	if !ok {
		// Accept struct-typed schemas via a JSON round trip.
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, nil
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, nil
		}
	}

	var required []string
	switch req := m["required"].(type) {
	case []string:
		required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	return m["properties"], required
}

var _ workflow.Agent = (*ToolAgent)(nil)
