package core

import (
	"fmt"
	"strings"
)

// The output contract between the prompt builder and the response parser
// lives here and only here. Both sides read these definitions; keeping them
// in one place is what keeps the instruction text and the parser grammar in
// lockstep.

// JSON field names the model is instructed to emit, and the parser reads.
const (
	FieldFindings   = "findings"
	FieldFile       = "file"
	FieldLine       = "line"
	FieldSeverity   = "severity"
	FieldCategory   = "category"
	FieldTitle      = "title"
	FieldBody       = "description"
	FieldSuggestion = "suggestion"
)

// SeverityLabels is the closed set of severity values the model may emit.
var SeverityLabels = []string{"info", "suggestion", "warning", "blocking"}

// CategoryLabels is the closed set of finding categories.
var CategoryLabels = []string{"security", "correctness", "performance", "maintainability", "style"}

// OutputInstructions renders the structured-output section of the review
// prompt. maxFindings caps the number of findings requested per chunk.
func OutputInstructions(maxFindings int) string {
	var sb strings.Builder

	sb.WriteString("## Output Format\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(fmt.Sprintf(`{
  %q: [
    {
      %q: "path/to/file.ext",
      %q: 42,
      %q: "warning",
      %q: "correctness",
      %q: "Short summary of the issue",
      %q: "Detailed explanation of the issue and why it matters",
      %q: "optional corrected code"
    }
  ]
}`,
		FieldFindings, FieldFile, FieldLine, FieldSeverity,
		FieldCategory, FieldTitle, FieldBody, FieldSuggestion))
	sb.WriteString("\n```\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString(fmt.Sprintf("- %q must be one of: %s.\n", FieldSeverity, strings.Join(SeverityLabels, ", ")))
	sb.WriteString(fmt.Sprintf("- %q must be one of: %s.\n", FieldCategory, strings.Join(CategoryLabels, ", ")))
	sb.WriteString(fmt.Sprintf("- %q must be a changed or shown line number from the diff (the number printed at the start of the line).\n", FieldLine))
	sb.WriteString(fmt.Sprintf("- Omit %q when there is no concrete code fix.\n", FieldSuggestion))
	if maxFindings > 0 {
		sb.WriteString(fmt.Sprintf("- Report at most %d findings; prefer the most severe ones.\n", maxFindings))
	}
	sb.WriteString("- If there is nothing to report, respond with {\"findings\": []}.\n")

	return sb.String()
}
