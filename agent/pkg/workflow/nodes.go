package workflow

import (
	"context"
	"fmt"
)

// fetchSchema retrieves the schema description. On a non-static schema this
// runs again on every retry so the prompt tolerates schema drift. Failure is
// recorded on the state; the table routes to HandleError from PrepareQuery.
func (w *Workflow) fetchSchema(ctx context.Context, st *State) (Patch, Node) {
	if w.cfg.StaticSchema {
		w.mu.Lock()
		cached := w.cachedSchema
		w.mu.Unlock()
		if cached != "" {
			return Patch{SchemaText: strptr(cached)}, NodePrepareQuery
		}
	}

	schema, err := w.cfg.SchemaFetcher.FetchSchema(ctx)
	if err != nil {
		w.logInfo("workflow: schema fetch failed", "run_id", st.RunID, "error", err)
		p := failure(ErrSchemaFetchFailed, fmt.Sprintf("failed to get database schema: %s", err))
		return p, NodePrepareQuery
	}

	if w.cfg.SchemaContext != "" {
		schema = schema + "\n\n" + w.cfg.SchemaContext
	}

	if w.cfg.StaticSchema {
		w.mu.Lock()
		w.cachedSchema = schema
		w.mu.Unlock()
	}

	return Patch{SchemaText: strptr(schema)}, NodePrepareQuery
}

// prepareQuery extracts the user question on intake, builds the agent prompt
// for the current attempt, and resets the per-attempt fields while preserving
// the retry counter. The question is taken once per run: on a retry the
// already-extracted question is reused, and the built prompt is carried in
// PreparedPrompt, never appended to the conversation.
func (w *Workflow) prepareQuery(st *State) (Patch, Node) {
	if st.Failed() {
		return Patch{}, NodeHandleError
	}

	question := st.NaturalLanguageQuery
	if question == "" {
		for i := len(st.Conversation) - 1; i >= 0; i-- {
			if st.Conversation[i].Role == RoleUser {
				question = st.Conversation[i].Content
				break
			}
		}
	}
	if question == "" {
		return failure(ErrNoQueryFound, "no user question found in the conversation to process"), NodeHandleError
	}

	// Feedback from the previous attempt steers the retry prompt.
	retryFeedback := ""
	if st.ValidationStatus == ValidationInvalid && st.GeneratedSQL != "" {
		retryFeedback = st.ValidationFeedback
	}

	prompt := w.cfg.Prompts.BuildAgentPrompt(question, st.SchemaText, retryFeedback)

	return Patch{
		NaturalLanguageQuery: strptr(question),
		PreparedPrompt:       strptr(prompt),
		GeneratedSQL:         strptr(""),
		ProvidedSchemaAnswer: strptr(""),
		ValidationStatus:     statusptr(ValidationUnset),
		ValidationFeedback:   strptr(""),
		ExecutionResult:      strptr(""),
	}, NodeInvokeAgent
}

// invokeAgent runs the tool-calling agent with the prepared prompt. The
// agent's internal tool calls are opaque here; only its final message lands
// in the conversation.
func (w *Workflow) invokeAgent(ctx context.Context, st *State) (Patch, Node) {
	message, err := w.cfg.Agent.Run(ctx, st.PreparedPrompt, w.cfg.Tools)
	if err != nil {
		w.logInfo("workflow: agent call failed", "run_id", st.RunID, "error", err)
		return failure(ErrAgentCallFailed, fmt.Sprintf("agent call failed: %s", err)), NodeClassifyOutput
	}

	return Patch{
		AppendMessages: []Message{{Role: RoleAssistant, Content: message}},
	}, NodeClassifyOutput
}

// classifyOutput labels the agent's final message as SQL, schema text, or
// unrecognized, and routes accordingly.
func (w *Workflow) classifyOutput(st *State) (Patch, Node) {
	if st.Failed() {
		return Patch{}, NodeHandleError
	}

	message := ""
	if n := len(st.Conversation); n > 0 && st.Conversation[n-1].Role == RoleAssistant {
		message = st.Conversation[n-1].Content
	}
	if message == "" {
		return failure(ErrUnrecognizedOutput, "agent did not return a final message with content"), NodeHandleError
	}

	c := Classify(message, st.NaturalLanguageQuery)
	w.logInfo("workflow: classified agent output", "run_id", st.RunID, "label", c.Label, "rule", c.Rule)

	switch c.Label {
	case LabelSQL:
		return Patch{
			GeneratedSQL:         strptr(c.SQL),
			ProvidedSchemaAnswer: strptr(""),
			ValidationFeedback:   strptr(""),
		}, NodeValidateSQL
	case LabelSchema:
		return Patch{
			ProvidedSchemaAnswer: strptr(c.SchemaText),
			GeneratedSQL:         strptr(""),
		}, NodeFormatResponse
	default:
		msg := fmt.Sprintf("agent did not produce a recognizable SQL query or schema description. Response: %s", message)
		return failure(ErrUnrecognizedOutput, msg), NodeHandleError
	}
}

// validateSQL judges the generated SQL with a structured LLM call, degrading
// to local syntax-only checking when no schema is available. Only a semantic
// invalid verdict is retried; transport failures are terminal.
func (w *Workflow) validateSQL(ctx context.Context, st *State) (Patch, Node) {
	if st.Failed() {
		return Patch{}, NodeHandleError
	}

	var verdict Verdict
	if st.SchemaText == "" {
		// Without a schema, table and column references cannot be verified;
		// the verdict says so rather than silently claiming validity.
		verdict = ValidateSyntax(st.GeneratedSQL)
	} else {
		var err error
		verdict, err = w.cfg.Validator.Validate(ctx, st.SchemaText, st.NaturalLanguageQuery, st.GeneratedSQL)
		if err != nil {
			w.logInfo("workflow: validation call failed", "run_id", st.RunID, "error", err)
			p := failure(ErrValidationTransport, fmt.Sprintf("failed during SQL validation: %s", err))
			p.ValidationStatus = statusptr(ValidationError)
			return p, NodeHandleError
		}
	}

	p := Patch{
		ValidationStatus:   statusptr(verdict.Status),
		ValidationFeedback: strptr(verdict.Feedback),
	}

	switch {
	case verdict.Status == ValidationValid:
		return p, NodeExecuteSQL
	case verdict.Status == ValidationInvalid && st.RetryCount < w.cfg.MaxRetries:
		w.logInfo("workflow: SQL invalid, retrying generation",
			"run_id", st.RunID, "attempt", st.RetryCount+1, "feedback", verdict.Feedback)
		return p, NodeIncrementRetry
	case verdict.Status == ValidationInvalid:
		w.logInfo("workflow: SQL invalid after max retries", "run_id", st.RunID, "retries", st.RetryCount)
		p.ErrorKind = kindptr(ErrValidationExhausted)
		p.ErrorMessage = strptr(fmt.Sprintf(
			"the generated SQL was still invalid after %d retries. Last validation feedback: %s",
			w.cfg.MaxRetries, verdict.Feedback))
		return p, NodeHandleError
	default:
		// The validator itself reported it could not judge.
		p.ValidationStatus = statusptr(ValidationError)
		p.ErrorKind = kindptr(ErrValidationTransport)
		p.ErrorMessage = strptr(fmt.Sprintf("the validator could not produce a verdict: %s", verdict.Feedback))
		return p, NodeHandleError
	}
}

// incrementRetry bumps the counter and loops back for a fresh attempt.
func (w *Workflow) incrementRetry(st *State) (Patch, Node) {
	return Patch{
		RetryCount:           intptr(st.RetryCount + 1),
		ProvidedSchemaAnswer: strptr(""),
	}, w.retryReentry()
}

// executeSQL runs the validated statement. Execution failures are terminal:
// only generation is retried, never execution.
func (w *Workflow) executeSQL(ctx context.Context, st *State) (Patch, Node) {
	if st.Failed() {
		return Patch{}, NodeHandleError
	}
	if st.ValidationStatus != ValidationValid || st.GeneratedSQL == "" {
		// Unreachable through the graph; kept so the executor can never see
		// unvalidated SQL even if a caller drives nodes by hand.
		return Patch{}, NodeFormatResponse
	}

	result, err := w.cfg.Executor.Query(ctx, st.GeneratedSQL)
	if err != nil {
		w.logInfo("workflow: SQL execution failed", "run_id", st.RunID, "error", err)
		return failure(ErrExecutionFailed, fmt.Sprintf("failed during SQL execution: %s", err)), NodeHandleError
	}

	formatted := result.Formatted
	if result.SavedTo != "" {
		formatted += fmt.Sprintf("\n\nThe full result set was saved to: %s", result.SavedTo)
	}

	return Patch{ExecutionResult: strptr(formatted)}, NodeFormatResponse
}

// handleError is the single chokepoint for failures: a pure pass-through
// that preserves the error for formatting. It never fails itself.
func (w *Workflow) handleError(st *State) (Patch, Node) {
	w.logInfo("workflow: handling error", "run_id", st.RunID, "kind", st.ErrorKind, "error", st.ErrorMessage)
	return Patch{}, NodeFormatResponse
}

// schemaAnswerHeader prefixes schema answers in the final message.
const schemaAnswerHeader = "Here is the database schema you requested:"

// formatResponse builds the single user-facing message and appends it to the
// conversation. Priority: schema answer, then error explanation, then
// execution result, then a fallback echoing the last validation feedback.
func (w *Workflow) formatResponse(ctx context.Context, st *State) (Patch, Node) {
	question := st.NaturalLanguageQuery
	if question == "" {
		question = "your query"
	}

	var queryType, raw, content string
	switch {
	case st.ProvidedSchemaAnswer != "":
		queryType = "schema_request"
		raw = st.ProvidedSchemaAnswer
		content = fmt.Sprintf("%s\n\n%s", schemaAnswerHeader, st.ProvidedSchemaAnswer)
	case st.Failed():
		queryType = "error"
		content = fmt.Sprintf("I encountered an error while processing %q: %s", question, st.ErrorMessage)
	case st.ExecutionResult != "":
		queryType = "data_query"
		raw = st.ExecutionResult
		content = fmt.Sprintf("Here are the results for %q:\n\n%s", question, st.ExecutionResult)
	default:
		queryType = "validation_failure"
		feedback := st.ValidationFeedback
		if feedback == "" {
			feedback = "no specific feedback available"
		}
		raw = "Validation feedback: " + feedback
		content = fmt.Sprintf("I processed %q but couldn't validate or execute the SQL query. Validation feedback: %s", question, feedback)
	}

	// Optional LLM polish; the deterministic text above is the fallback.
	if w.cfg.Formatter != nil {
		polished, err := w.cfg.Formatter.FormatResponse(ctx, FormatRequest{
			Question:     question,
			QueryType:    queryType,
			RawResults:   raw,
			GeneratedSQL: st.GeneratedSQL,
			ErrorMessage: st.ErrorMessage,
		})
		if err != nil {
			w.logInfo("workflow: LLM formatting failed, using fallback", "run_id", st.RunID, "error", err)
		} else if polished != "" {
			content = polished
		}
	}

	return Patch{
		AppendMessages: []Message{{Role: RoleAssistant, Content: content, Name: "data_analyst"}},
	}, NodeDone
}
