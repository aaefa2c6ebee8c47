// Package prompts holds the embedded workflow prompt templates.
package prompts

import "embed"

//go:embed *.md
var FS embed.FS
