package tcr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

type stubAgent struct {
	response string
	tools    [][]workflow.Tool
}

func (a *stubAgent) Run(_ context.Context, _ string, tools []workflow.Tool) (string, error) {
	a.tools = append(a.tools, tools)
	return a.response, nil
}

type stubValidator struct {
	verdicts []workflow.Verdict
	calls    int
}

func (v *stubValidator) Validate(_ context.Context, _, _, _ string) (workflow.Verdict, error) {
	v.calls++
	i := min(v.calls-1, len(v.verdicts)-1)
	return v.verdicts[i], nil
}

type stubExecutor struct {
	executed []string
}

func (e *stubExecutor) Query(_ context.Context, sql string) (workflow.QueryResult, error) {
	e.executed = append(e.executed, sql)
	return workflow.QueryResult{Formatted: "Results (1 rows):\n42", Count: 1}, nil
}

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) FetchSchema(_ context.Context) (string, error) {
	f.calls++
	return "Table: tcr_clonotypes\nColumns:\n  - cdr3_sequence (TEXT)", nil
}

func TestNewAddsDomainConfiguration(t *testing.T) {
	t.Parallel()

	agent := &stubAgent{response: "```sql\nSELECT cdr3_sequence FROM tcr_clonotypes\n```"}
	fetcher := &countingFetcher{}

	w, err := New(workflow.Config{
		Agent:         agent,
		Validator:     &stubValidator{verdicts: []workflow.Verdict{{Status: workflow.ValidationValid}}},
		Executor:      &stubExecutor{},
		SchemaFetcher: fetcher,
	})
	require.NoError(t, err)

	result, err := w.Ask(context.Background(), "most frequent clonotypes?")
	require.NoError(t, err)

	// The agent received the TCR analysis tools.
	require.NotEmpty(t, agent.tools)
	names := make([]string, 0, len(agent.tools[0]))
	for _, tool := range agent.tools[0] {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "calculate_diversity_metrics")
	assert.Contains(t, names, "analyze_cdr3_motifs")
	assert.Contains(t, names, "compare_repertoires")

	// The fetched schema carries the domain guidance.
	assert.Contains(t, result.State.SchemaText, "Clonotype")
	assert.Contains(t, result.State.SchemaText, "Table: tcr_clonotypes")
}

func TestRetryReentersWithoutRefetch(t *testing.T) {
	t.Parallel()

	fetcher := &countingFetcher{}
	executor := &stubExecutor{}

	w, err := New(workflow.Config{
		Agent: &stubAgent{response: "```sql\nSELECT cdr3_sequence FROM tcr_clonotypes\n```"},
		Validator: &stubValidator{verdicts: []workflow.Verdict{
			{Status: workflow.ValidationInvalid, Feedback: "wrong column"},
			{Status: workflow.ValidationValid},
		}},
		Executor:      executor,
		SchemaFetcher: fetcher,
	})
	require.NoError(t, err)

	result, err := w.Ask(context.Background(), "most frequent clonotypes?")
	require.NoError(t, err)

	// The schema is domain-static: fetched once even across the retry and
	// a second run.
	assert.Equal(t, 1, result.State.RetryCount)
	assert.Equal(t, 1, fetcher.calls)
	assert.Len(t, executor.executed, 1)

	_, err = w.Ask(context.Background(), "diversity by cohort?")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}
