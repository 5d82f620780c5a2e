package hint

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("hint").Parse(`You are a helpful SQL tutor. The student is trying to solve this SQL problem:

Question: {{.Question}}
{{if .Schema}}
Database Schema:
{{.Schema}}
{{end}}
Their current SQL query attempt:
` + "```sql\n{{.Query}}\n```" + `

Provide a helpful, educational hint to guide them toward the correct solution.
Be concise (2-3 sentences max), point out logical issues if any, and suggest what they should research or try next.
DO NOT provide the complete solution or the actual SQL answer.`))

// BuildPrompt renders the tutor prompt for one learner attempt.
func BuildPrompt(question, query, schema string) string {
	var b strings.Builder
	_ = promptTemplate.Execute(&b, struct{ Question, Query, Schema string }{
		Question: strings.TrimSpace(question),
		Query:    strings.TrimSpace(query),
		Schema:   strings.TrimSpace(schema),
	})
	return b.String()
}
