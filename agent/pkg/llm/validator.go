package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

// verdictToolName is the forced tool the validator model must call.
const verdictToolName = "record_validation_verdict"

// SQLValidator judges generated SQL against the schema and the user's
// question with a structured LLM call. The forced tool keeps the verdict
// machine-readable: the model cannot reply in prose.
type SQLValidator struct {
	client  *Client
	prompts *workflow.Prompts
}

// NewSQLValidator creates a validator. prompts may be nil, in which case the
// embedded defaults are loaded.
func NewSQLValidator(client *Client, prompts *workflow.Prompts) (*SQLValidator, error) {
	if prompts == nil {
		p, err := workflow.LoadPrompts()
		if err != nil {
			return nil, err
		}
		prompts = p
	}
	return &SQLValidator{client: client, prompts: prompts}, nil
}

// rawVerdict is the tool input shape the model fills in.
type rawVerdict struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback"`
}

// Validate asks the model for a valid/invalid verdict. A returned error means
// the call itself failed; semantic invalidity comes back in the Verdict.
func (v *SQLValidator) Validate(ctx context.Context, schema, question, sql string) (workflow.Verdict, error) {
	prompt := v.prompts.BuildValidatorPrompt(schema, question, sql)

	var raw rawVerdict
	err := v.client.CompleteStructured(ctx, "", prompt, StructuredTool{
		Name:        verdictToolName,
		Description: "Record the validation verdict for the generated SQL query.",
		Properties: map[string]any{
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"valid", "invalid"},
				"description": "Whether the SQL is correct for the schema and the question.",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "Specific, actionable feedback. Required when status is invalid.",
			},
		},
		Required: []string{"status", "feedback"},
	}, &raw)
	if err != nil {
		return workflow.Verdict{}, err
	}

	return normalizeVerdict(raw)
}

// normalizeVerdict maps the model's raw output onto the verdict contract:
// status is one of valid/invalid, and feedback is never empty on invalid.
func normalizeVerdict(raw rawVerdict) (workflow.Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(raw.Status)) {
	case "valid":
		return workflow.Verdict{
			Status:   workflow.ValidationValid,
			Feedback: raw.Feedback,
		}, nil
	case "invalid":
		feedback := strings.TrimSpace(raw.Feedback)
		if feedback == "" {
			feedback = "the validator marked the query invalid without specific feedback; regenerate the query paying close attention to the schema"
		}
		return workflow.Verdict{
			Status:   workflow.ValidationInvalid,
			Feedback: feedback,
		}, nil
	default:
		return workflow.Verdict{}, fmt.Errorf("validator returned unrecognized status %q", raw.Status)
	}
}

var _ workflow.Validator = (*SQLValidator)(nil)
