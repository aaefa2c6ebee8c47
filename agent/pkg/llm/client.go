// Package llm provides the Anthropic-backed implementations of the workflow
// contracts: the tool-calling agent, the structured SQL validator, and the
// optional response formatter.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens bounds a single completion.
const DefaultMaxTokens = 4096

// Client wraps the Anthropic SDK with the defaults shared by every LLM role
// in the workflow.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithAPIKey sets the API key explicitly instead of using the
// ANTHROPIC_API_KEY environment variable.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		client := anthropic.NewClient(option.WithAPIKey(key))
		c.client = &client
	}
}

// WithModel sets the model for all requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens sets the per-completion token ceiling.
func WithMaxTokens(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client. Without WithAPIKey the SDK reads
// ANTHROPIC_API_KEY from the environment.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		client := anthropic.NewClient()
		c.client = &client
	}
	return c
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) newParams(system string, messages []anthropic.MessageParam) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// Complete sends a single-turn prompt and returns the concatenated text
// content of the response.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := c.newParams(system, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

// StructuredTool describes the synthetic tool used to force a JSON-shaped
// response out of the model.
type StructuredTool struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// CompleteStructured sends a prompt with a single forced tool and decodes the
// tool input into out. The model cannot answer in free text: tool choice
// pins it to the synthetic tool, so the input is always a JSON object
// matching the declared schema.
func (c *Client) CompleteStructured(ctx context.Context, system, prompt string, tool StructuredTool, out any) error {
	params := c.newParams(system, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})
	params.Tools = []anthropic.ToolUnionParam{{
		OfTool: &anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: tool.Properties,
				Required:   tool.Required,
			},
		},
	}}
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return fmt.Errorf("anthropic structured completion failed: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == tool.Name {
			if err := json.Unmarshal([]byte(block.Input), out); err != nil {
				return fmt.Errorf("failed to decode structured response: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("model did not call the %s tool (stop reason %s)", tool.Name, resp.StopReason)
}
