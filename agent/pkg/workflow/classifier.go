package workflow

import (
	"regexp"
	"strings"
)

// Label is the classifier's verdict on an agent message.
type Label string

const (
	LabelSQL          Label = "sql"
	LabelSchema       Label = "schema"
	LabelUnrecognized Label = "unrecognized"
)

// Classification is the outcome of classifying one agent message. Exactly one
// of SQL / SchemaText is non-empty unless the label is unrecognized.
type Classification struct {
	Label      Label
	Rule       string // name of the rule that matched, for diagnostics
	SQL        string
	SchemaText string
}

var (
	sqlFencePattern = regexp.MustCompile("(?is)```sql\\s*(.*?)\\s*```")
	sqlVerbPattern  = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|CREATE|DROP|ALTER)\b`)
)

// looksLikeSchema reports whether a message reads as a schema description.
// The cues match the schema formats this system itself produces: a
// "database schema:" header, or "table:" together with "columns:".
func looksLikeSchema(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "database schema:") {
		return true
	}
	return strings.Contains(lower, "table:") && strings.Contains(lower, "columns:")
}

// containsSQLVerb reports whether the text mentions a SQL statement keyword.
// This alone is unreliable: schema prose legitimately says things like "this
// table supports INSERT operations", which is why the classifier pairs it
// with the schema-phrase exclusion below.
func containsSQLVerb(text string) bool {
	return sqlVerbPattern.MatchString(text)
}

// classifierRule is one (predicate, outcome) pair. Rules are evaluated in
// order; the first match wins.
type classifierRule struct {
	name  string
	apply func(message, question string) (Classification, bool)
}

var classifierRules = []classifierRule{
	{
		// A fenced ```sql block whose body contains a SQL verb is SQL, no
		// matter what the surrounding prose mentions.
		name: "fenced_sql_block",
		apply: func(message, _ string) (Classification, bool) {
			m := sqlFencePattern.FindStringSubmatch(message)
			if m == nil {
				return Classification{}, false
			}
			body := strings.TrimSpace(m[1])
			if body == "" || !containsSQLVerb(body) {
				return Classification{}, false
			}
			return Classification{Label: LabelSQL, Rule: "fenced_sql_block", SQL: body}, true
		},
	},
	{
		// Raw SQL: has a verb and does not read as a schema description.
		name: "raw_sql",
		apply: func(message, _ string) (Classification, bool) {
			if !containsSQLVerb(message) || looksLikeSchema(message) {
				return Classification{}, false
			}
			return Classification{Label: LabelSQL, Rule: "raw_sql", SQL: strings.TrimSpace(message)}, true
		},
	},
	{
		name: "schema_description",
		apply: func(message, _ string) (Classification, bool) {
			if !looksLikeSchema(message) {
				return Classification{}, false
			}
			return Classification{Label: LabelSchema, Rule: "schema_description", SchemaText: strings.TrimSpace(message)}, true
		},
	},
	{
		// The user asked about the schema, so ambiguous prose is assumed to
		// be the structure they asked for.
		name: "question_intent_fallback",
		apply: func(message, question string) (Classification, bool) {
			if !strings.Contains(strings.ToLower(question), "schema") {
				return Classification{}, false
			}
			return Classification{Label: LabelSchema, Rule: "question_intent_fallback", SchemaText: strings.TrimSpace(message)}, true
		},
	},
}

// Classify labels an agent's final message as SQL, schema text, or
// unrecognized. It is deterministic and order-sensitive: the fenced-block
// rule outranks everything, then raw-SQL with the schema-phrase exclusion,
// then schema cues, then the question-intent fallback.
func Classify(message, question string) Classification {
	for _, rule := range classifierRules {
		if c, ok := rule.apply(message, question); ok {
			return c
		}
	}
	return Classification{Label: LabelUnrecognized, Rule: "unrecognized"}
}
