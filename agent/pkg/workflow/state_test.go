package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchApply(t *testing.T) {
	t.Parallel()

	t.Run("nil fields are untouched", func(t *testing.T) {
		t.Parallel()

		s := NewState(nil)
		s.GeneratedSQL = "SELECT 1"
		s.RetryCount = 1

		s.apply(Patch{SchemaText: strptr("schema")})

		assert.Equal(t, "SELECT 1", s.GeneratedSQL)
		assert.Equal(t, 1, s.RetryCount)
		assert.Equal(t, "schema", s.SchemaText)
	})

	t.Run("pointer to zero clears", func(t *testing.T) {
		t.Parallel()

		s := NewState(nil)
		s.GeneratedSQL = "SELECT 1"
		s.ValidationStatus = ValidationInvalid

		s.apply(Patch{
			GeneratedSQL:     strptr(""),
			ValidationStatus: statusptr(ValidationUnset),
		})

		assert.Empty(t, s.GeneratedSQL)
		assert.Equal(t, ValidationUnset, s.ValidationStatus)
	})

	t.Run("first error wins", func(t *testing.T) {
		t.Parallel()

		s := NewState(nil)
		s.apply(failure(ErrSchemaFetchFailed, "first"))
		s.apply(failure(ErrExecutionFailed, "second"))

		assert.Equal(t, ErrSchemaFetchFailed, s.ErrorKind)
		assert.Equal(t, "first", s.ErrorMessage)
	})

	t.Run("messages append", func(t *testing.T) {
		t.Parallel()

		s := NewState([]Message{{Role: RoleUser, Content: "hi"}})
		s.apply(Patch{AppendMessages: []Message{{Role: RoleAssistant, Content: "hello"}}})

		assert.Len(t, s.Conversation, 2)
		assert.Equal(t, "hello", s.FinalMessage())
	})
}

func TestStateFinalMessage(t *testing.T) {
	t.Parallel()

	s := NewState([]Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
		{Role: RoleAssistant, Content: "a2"},
	})

	assert.Equal(t, "a2", s.FinalMessage())
	assert.Empty(t, NewState(nil).FinalMessage())
}

func TestBuildAgentPrompt(t *testing.T) {
	t.Parallel()

	p, err := LoadPrompts()
	assert.NoError(t, err)

	t.Run("first attempt has no feedback", func(t *testing.T) {
		t.Parallel()

		prompt := p.BuildAgentPrompt("how many patients?", "Table: patients", "")
		assert.Contains(t, prompt, "how many patients?")
		assert.Contains(t, prompt, "Table: patients")
		assert.NotContains(t, prompt, "failed validation")
	})

	t.Run("retry embeds validation feedback", func(t *testing.T) {
		t.Parallel()

		prompt := p.BuildAgentPrompt("how many patients?", "Table: patients", "column cohorte does not exist")
		assert.Contains(t, prompt, "failed validation")
		assert.Contains(t, prompt, "column cohorte does not exist")
	})

	t.Run("no placeholders survive", func(t *testing.T) {
		t.Parallel()

		prompt := p.BuildAgentPrompt("q", "s", "f")
		assert.NotContains(t, prompt, "{{")
	})
}
