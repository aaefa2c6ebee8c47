package llm

import (
	"context"
	"strings"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// ResponseFormatter polishes the deterministic final message with an LLM
// pass. Failures are acceptable: the orchestrator falls back to its own
// formatting whenever this errors or returns nothing.
type ResponseFormatter struct {
	client  *Client
	prompts *workflow.Prompts
}

// NewResponseFormatter creates a formatter. prompts may be nil, in which case
// the embedded defaults are loaded.
func NewResponseFormatter(client *Client, prompts *workflow.Prompts) (*ResponseFormatter, error) {
	if prompts == nil {
		p, err := workflow.LoadPrompts()
		if err != nil {
			return nil, err
		}
		prompts = p
	}
	return &ResponseFormatter{client: client, prompts: prompts}, nil
}

// FormatResponse renders the final user-facing answer.
func (f *ResponseFormatter) FormatResponse(ctx context.Context, req workflow.FormatRequest) (string, error) {
	prompt := f.prompts.BuildFormatterPrompt(req)
	out, err := f.client.Complete(ctx, "", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

var _ workflow.Formatter = (*ResponseFormatter)(nil)
