package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcrlabs/datateam/agent/pkg/workflow"
)

func TestSplitSchema(t *testing.T) {
	t.Parallel()

	t.Run("map schema", func(t *testing.T) {
		t.Parallel()

		props, required := splitSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []any{"query"},
		})

		require.NotNil(t, props)
		assert.Equal(t, []string{"query"}, required)
	})

	t.Run("string slice required", func(t *testing.T) {
		t.Parallel()

		_, required := splitSchema(map[string]any{
			"properties": map[string]any{},
			"required":   []string{"a", "b"},
		})
		assert.Equal(t, []string{"a", "b"}, required)
	})

	t.Run("struct schema via JSON round trip", func(t *testing.T) {
		t.Parallel()

		type schema struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		props, required := splitSchema(schema{
			Type:       "object",
			Properties: map[string]any{"name": map[string]any{"type": "string"}},
			Required:   []string{"name"},
		})

		require.NotNil(t, props)
		assert.Equal(t, []string{"name"}, required)
	})
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	tools := convertTools([]workflow.Tool{
		{
			Name:        "execute_sql",
			Description: "Run a SQL query.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"sql": map[string]any{"type": "string"}},
				"required":   []any{"sql"},
			},
		},
	})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "execute_sql", tools[0].OfTool.Name)
	assert.Equal(t, []string{"sql"}, tools[0].OfTool.InputSchema.Required)

	assert.Nil(t, convertTools(nil))
}

func TestNormalizeVerdict(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()

		v, err := normalizeVerdict(rawVerdict{Status: "valid", Feedback: "looks good"})
		require.NoError(t, err)
		assert.Equal(t, workflow.ValidationValid, v.Status)
	})

	t.Run("status is case and whitespace tolerant", func(t *testing.T) {
		t.Parallel()

		v, err := normalizeVerdict(rawVerdict{Status: " Invalid ", Feedback: "wrong table"})
		require.NoError(t, err)
		assert.Equal(t, workflow.ValidationInvalid, v.Status)
		assert.Equal(t, "wrong table", v.Feedback)
	})

	t.Run("invalid without feedback gets a usable default", func(t *testing.T) {
		t.Parallel()

		v, err := normalizeVerdict(rawVerdict{Status: "invalid"})
		require.NoError(t, err)
		assert.Equal(t, workflow.ValidationInvalid, v.Status)
		assert.NotEmpty(t, v.Feedback)
	})

	t.Run("unknown status is a transport-level error", func(t *testing.T) {
		t.Parallel()

		_, err := normalizeVerdict(rawVerdict{Status: "maybe"})
		require.Error(t, err)
	})
}
