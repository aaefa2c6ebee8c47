package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
	"github.com/tcrlabs/datateam/api/metrics"
)

// AskRequest is a natural-language question, optionally with the preceding
// conversation turns.
type AskRequest struct {
	Question     string             `json:"question"`
	Conversation []workflow.Message `json:"conversation,omitempty"`

	// Variant selects the workflow: "" or "standard", or "tcr".
	Variant string `json:"variant,omitempty"`
}

// AskResponse is the outcome of one workflow run.
type AskResponse struct {
	RunID        string `json:"run_id"`
	Answer       string `json:"answer"`
	GeneratedSQL string `json:"generated_sql,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Retries      int    `json:"retries"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

// Ask runs the workflow for one question.
func Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conversation := req.Conversation
	if req.Question != "" {
		conversation = append(conversation, workflow.Message{Role: workflow.RoleUser, Content: req.Question})
	}
	if len(conversation) == 0 {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	variant := req.Variant
	if variant == "" {
		variant = "standard"
	}
	var runner Runner
	switch variant {
	case "standard":
		runner = deps.Standard
	case "tcr":
		runner = deps.TCR
	default:
		http.Error(w, "Unknown variant: "+req.Variant, http.StatusBadRequest)
		return
	}
	if runner == nil {
		http.Error(w, "Variant not configured: "+variant, http.StatusNotImplemented)
		return
	}

	start := time.Now()
	result, err := runner.Run(r.Context(), conversation)
	if err != nil {
		metrics.RecordWorkflowRun(variant, "run_failed", 0, time.Since(start))
		writeError(w, r, http.StatusInternalServerError, "workflow run failed", err)
		return
	}

	metrics.RecordWorkflowRun(variant, string(result.State.ErrorKind), result.State.RetryCount, result.Elapsed)

	writeJSON(w, http.StatusOK, AskResponse{
		RunID:        result.RunID.String(),
		Answer:       result.Answer,
		GeneratedSQL: result.State.GeneratedSQL,
		ErrorKind:    string(result.State.ErrorKind),
		Retries:      result.State.RetryCount,
		ElapsedMS:    result.Elapsed.Milliseconds(),
	})
}
