package llm

import (
	"embed"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompt templates, parsed once at package init.
var (
	ExtractionTemplate = template.Must(template.ParseFS(promptFS, "prompts/extraction.tmpl"))
	SalaryTemplate     = template.Must(template.ParseFS(promptFS, "prompts/salary.tmpl"))
)
