package workflow

import (
	"fmt"
	"strings"

	"github.com/tcrlabs/datateam/agent/pkg/workflow/prompts"
)

// Prompts contains the workflow prompt templates loaded from embedded files.
type Prompts struct {
	Generator  string // agent instruction template for SQL generation
	Validator  string // structured-output validation template
	Formatter  string // final response formatting template
	TCRContext string // TCR domain context appended to the schema by the variant
}

// LoadPrompts loads all workflow prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Generator, err = loadPrompt("GENERATOR.md"); err != nil {
		return nil, err
	}
	if p.Validator, err = loadPrompt("VALIDATOR.md"); err != nil {
		return nil, err
	}
	if p.Formatter, err = loadPrompt("FORMATTER.md"); err != nil {
		return nil, err
	}
	// Optional: only the TCR variant uses it.
	p.TCRContext, _ = loadPrompt("TCR_CONTEXT.md")

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.FS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// applyTemplate substitutes {{NAME}} placeholders in a prompt template.
func applyTemplate(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}

// BuildAgentPrompt constructs the prompt handed to the tool-calling agent:
// the fixed instruction block, the current schema, and on a retry the
// previous validation feedback phrased as corrective guidance.
func (p *Prompts) BuildAgentPrompt(question, schema, retryFeedback string) string {
	feedback := ""
	if retryFeedback != "" {
		feedback = fmt.Sprintf(
			"You previously generated SQL that failed validation with the following feedback: %q. "+
				"Analyze this feedback and generate a corrected query.",
			retryFeedback)
	}
	return applyTemplate(p.Generator, map[string]string{
		"USER_QUERY":      question,
		"DATABASE_SCHEMA": schema,
		"RETRY_FEEDBACK":  feedback,
	})
}

// BuildValidatorPrompt constructs the prompt for the structured validation
// call.
func (p *Prompts) BuildValidatorPrompt(schema, question, sql string) string {
	return applyTemplate(p.Validator, map[string]string{
		"DATABASE_SCHEMA": schema,
		"USER_QUERY":      question,
		"GENERATED_SQL":   sql,
	})
}

// BuildFormatterPrompt constructs the prompt for the optional LLM response
// formatter.
func (p *Prompts) BuildFormatterPrompt(req FormatRequest) string {
	return applyTemplate(p.Formatter, map[string]string{
		"USER_QUERY":    req.Question,
		"QUERY_TYPE":    req.QueryType,
		"RAW_RESULTS":   req.RawResults,
		"GENERATED_SQL": req.GeneratedSQL,
		"ERROR_MESSAGE": req.ErrorMessage,
	})
}
