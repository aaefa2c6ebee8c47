package handlers

import (
	"encoding/json"
	"net/http"
)

// QueryRequest is a raw SQL statement to execute directly.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the tabular result.
type QueryResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
	SavedTo string           `json:"saved_to,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ExecuteQuery runs a SQL statement without the workflow. Unlike the
// workflow path there is no validation pass; the database itself is the only
// judge.
func ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "Query is required", http.StatusBadRequest)
		return
	}

	result, err := deps.Executor.Query(r.Context(), req.Query)
	if err != nil {
		// Query errors are part of normal operation; report them in the
		// payload rather than as a transport failure.
		writeJSON(w, http.StatusOK, QueryResponse{Error: SanitizeError(err)})
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Columns: result.Columns,
		Rows:    result.Rows,
		Count:   result.Count,
		SavedTo: result.SavedTo,
	})
}

// GetSchema returns the readable schema description of the backend.
func GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := deps.Backend.FetchSchema(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to fetch schema", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schema": schema})
}
