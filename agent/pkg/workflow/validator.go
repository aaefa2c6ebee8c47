package workflow

import (
	"strings"
)

// ValidateSyntax performs local, schema-free validation of a SQL statement.
// It is the degraded mode used when no schema description is available: it
// catches empty statements, missing SQL verbs, and banned constructs, but it
// cannot verify table or column references, and its feedback says so.
func ValidateSyntax(sql string) Verdict {
	upper := strings.ToUpper(strings.TrimSpace(sql))

	var problems []string
	if upper == "" {
		problems = append(problems, "query is empty")
	}
	if strings.Contains(upper, "SELECT *") {
		problems = append(problems, "use of SELECT * is not allowed - specify exact columns")
	}
	if upper != "" && !containsSQLVerb(upper) {
		problems = append(problems, "no valid SQL keyword found")
	}

	if len(problems) > 0 {
		return Verdict{
			Status:   ValidationInvalid,
			Feedback: strings.Join(problems, "; "),
		}
	}

	return Verdict{
		Status: ValidationValid,
		Feedback: "schema unavailable: syntax-only validation passed; " +
			"table and column references were not verified",
	}
}
