package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	schemaMessage := "Database Schema: immuno\n\nTable: patients\nColumns:\n  - patient_id (TEXT)"

	tests := []struct {
		name     string
		message  string
		question string
		label    Label
		rule     string
		sql      string
	}{
		{
			name:    "fenced sql block",
			message: "Here is the query:\n```sql\nSELECT cohort, COUNT(*) FROM patients GROUP BY cohort\n```\nLet me know.",
			label:   LabelSQL,
			rule:    "fenced_sql_block",
			sql:     "SELECT cohort, COUNT(*) FROM patients GROUP BY cohort",
		},
		{
			name:    "fenced block outranks schema cues in prose",
			message: "The database schema: is described below, but here is the query.\n```sql\nSELECT 1\n```",
			label:   LabelSQL,
			rule:    "fenced_sql_block",
			sql:     "SELECT 1",
		},
		{
			name:    "raw sql without fence",
			message: "SELECT patient_id FROM patients WHERE cohort = 'responder'",
			label:   LabelSQL,
			rule:    "raw_sql",
		},
		{
			name:    "lowercase sql verb",
			message: "select patient_id from patients",
			label:   LabelSQL,
			rule:    "raw_sql",
		},
		{
			name:    "schema description",
			message: schemaMessage,
			label:   LabelSchema,
			rule:    "schema_description",
		},
		{
			name:    "schema prose mentioning sql verbs stays schema",
			message: "Database Schema: immuno\nTable: patients\nColumns: patient_id. The table supports INSERT operations.",
			label:   LabelSchema,
			rule:    "schema_description",
		},
		{
			name:     "question intent fallback",
			message:  "The patients table holds one row per enrolled patient.",
			question: "what does the schema look like?",
			label:    LabelSchema,
			rule:     "question_intent_fallback",
		},
		{
			name:     "unrecognized prose",
			message:  "I am not sure how to answer that.",
			question: "how many patients responded?",
			label:    LabelUnrecognized,
			rule:     "unrecognized",
		},
		{
			name:    "empty fenced block falls through",
			message: "```sql\n```",
			label:   LabelUnrecognized,
			rule:    "unrecognized",
		},
		{
			name:    "fenced block without a verb falls through",
			message: "```sql\n-- nothing here\n```",
			label:   LabelUnrecognized,
			rule:    "unrecognized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Classify(tt.message, tt.question)

			assert.Equal(t, tt.label, c.Label)
			assert.Equal(t, tt.rule, c.Rule)
			if tt.sql != "" {
				assert.Equal(t, tt.sql, c.SQL)
			}

			// Exactly one payload is populated, and only for its label.
			switch c.Label {
			case LabelSQL:
				assert.NotEmpty(t, c.SQL)
				assert.Empty(t, c.SchemaText)
			case LabelSchema:
				assert.NotEmpty(t, c.SchemaText)
				assert.Empty(t, c.SQL)
			default:
				assert.Empty(t, c.SQL)
				assert.Empty(t, c.SchemaText)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	message := "```sql\nSELECT 1\n```"
	first := Classify(message, "q")
	for range 10 {
		assert.Equal(t, first, Classify(message, "q"))
	}
}

func TestValidateSyntax(t *testing.T) {
	t.Parallel()

	t.Run("valid statement", func(t *testing.T) {
		t.Parallel()

		v := ValidateSyntax("SELECT patient_id FROM patients")
		assert.Equal(t, ValidationValid, v.Status)
		assert.Contains(t, v.Feedback, "schema unavailable")
	})

	t.Run("empty statement", func(t *testing.T) {
		t.Parallel()

		v := ValidateSyntax("   ")
		assert.Equal(t, ValidationInvalid, v.Status)
		assert.Contains(t, v.Feedback, "empty")
	})

	t.Run("select star is banned", func(t *testing.T) {
		t.Parallel()

		v := ValidateSyntax("SELECT * FROM patients")
		assert.Equal(t, ValidationInvalid, v.Status)
		assert.Contains(t, v.Feedback, "SELECT *")
	})

	t.Run("no sql keyword", func(t *testing.T) {
		t.Parallel()

		v := ValidateSyntax("show me everything")
		assert.Equal(t, ValidationInvalid, v.Status)
		assert.Contains(t, v.Feedback, "no valid SQL keyword")
	})
}
