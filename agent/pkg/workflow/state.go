package workflow

import (
	"github.com/google/uuid"
)

// ErrorKind names a terminal failure category. Only invalid validation is
// retried; every kind here ends the run through the error path.
type ErrorKind string

const (
	ErrNone                 ErrorKind = ""
	ErrNoQueryFound         ErrorKind = "no_query_found"
	ErrSchemaFetchFailed    ErrorKind = "schema_fetch_failed"
	ErrAgentCallFailed      ErrorKind = "agent_call_failed"
	ErrUnrecognizedOutput   ErrorKind = "unrecognized_agent_output"
	ErrValidationTransport  ErrorKind = "validation_transport_error"
	ErrValidationExhausted  ErrorKind = "validation_exhausted"
	ErrExecutionFailed      ErrorKind = "execution_failed"
)

// State is the single mutable record threaded through one run. It is owned
// exclusively by the orchestrator; concurrent runs each get their own
// instance. Nodes never mutate it directly: they return a Patch that the
// driver merges in.
type State struct {
	RunID uuid.UUID

	// Conversation is append-only: it grows when the agent is invoked and
	// when the final answer is emitted.
	Conversation []Message

	// NaturalLanguageQuery is set once at intake and never changes within a
	// run. PreparedPrompt holds the current attempt's agent prompt; it is
	// rebuilt on every retry and never enters the conversation as a turn.
	NaturalLanguageQuery string
	PreparedPrompt       string
	SchemaText           string
	GeneratedSQL         string
	ProvidedSchemaAnswer string
	ValidationStatus     ValidationStatus
	ValidationFeedback   string
	ExecutionResult      string
	ErrorKind            ErrorKind
	ErrorMessage         string
	RetryCount           int
}

// NewState creates the state for a fresh run over the given conversation.
func NewState(conversation []Message) *State {
	s := &State{RunID: uuid.New()}
	s.Conversation = append(s.Conversation, conversation...)
	return s
}

// Failed reports whether a terminal error has been recorded.
func (s *State) Failed() bool {
	return s.ErrorMessage != ""
}

// FinalMessage returns the last assistant message, the run's answer.
func (s *State) FinalMessage() string {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == RoleAssistant {
			return s.Conversation[i].Content
		}
	}
	return ""
}

// Patch is a partial state update produced by a node. Nil pointer fields are
// left untouched; a pointer to the zero value clears the field.
type Patch struct {
	AppendMessages []Message

	NaturalLanguageQuery *string
	PreparedPrompt       *string
	SchemaText           *string
	GeneratedSQL         *string
	ProvidedSchemaAnswer *string
	ValidationStatus     *ValidationStatus
	ValidationFeedback   *string
	ExecutionResult      *string
	ErrorKind            *ErrorKind
	ErrorMessage         *string
	RetryCount           *int
}

// apply merges a patch into the state. Once an error message is set it is
// never cleared within the run, and the intake question is never overwritten
// once set; nodes that legitimately reset per-attempt fields only do so when
// no error is present.
func (s *State) apply(p Patch) {
	s.Conversation = append(s.Conversation, p.AppendMessages...)

	if p.NaturalLanguageQuery != nil && s.NaturalLanguageQuery == "" {
		s.NaturalLanguageQuery = *p.NaturalLanguageQuery
	}
	if p.PreparedPrompt != nil {
		s.PreparedPrompt = *p.PreparedPrompt
	}
	if p.SchemaText != nil {
		s.SchemaText = *p.SchemaText
	}
	if p.GeneratedSQL != nil {
		s.GeneratedSQL = *p.GeneratedSQL
	}
	if p.ProvidedSchemaAnswer != nil {
		s.ProvidedSchemaAnswer = *p.ProvidedSchemaAnswer
	}
	if p.ValidationStatus != nil {
		s.ValidationStatus = *p.ValidationStatus
	}
	if p.ValidationFeedback != nil {
		s.ValidationFeedback = *p.ValidationFeedback
	}
	if p.ExecutionResult != nil {
		s.ExecutionResult = *p.ExecutionResult
	}
	if p.ErrorKind != nil && s.ErrorKind == ErrNone {
		s.ErrorKind = *p.ErrorKind
	}
	if p.ErrorMessage != nil && s.ErrorMessage == "" {
		s.ErrorMessage = *p.ErrorMessage
	}
	if p.RetryCount != nil {
		s.RetryCount = *p.RetryCount
	}
}

func strptr(s string) *string                      { return &s }
func intptr(i int) *int                            { return &i }
func statusptr(v ValidationStatus) *ValidationStatus { return &v }
func kindptr(k ErrorKind) *ErrorKind               { return &k }

// failure builds the patch fields for a terminal error.
func failure(kind ErrorKind, msg string) Patch {
	return Patch{ErrorKind: kindptr(kind), ErrorMessage: strptr(msg)}
}
