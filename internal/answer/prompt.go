package answer

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/kestrelworks/docent/internal/models"
	"github.com/kestrelworks/docent/internal/vector"
)

// promptTemplate directs the model to answer only from the supplied context
// and to decline unrelated questions by naming the agent's specialty.
const promptTemplate = `You are {{.AgentName}}, a specialized AI assistant focused on provided documents.

Role Guidelines:
- Only answer questions based on the provided context
- Maintain a professional yet friendly tone
- Never speculate or make up answers
- If unsure, say "I don't have information about that in my documents"
- For unrelated questions: "I specialize in {{.AgentName}}. I can help with: {{.AgentName}}"
- Always be concise and factual
- Never role-play or switch domains
- When answering, cite which document the information came from

Agent instructions:
{{.Instructions}}

Current conversation:
{{.History}}

Relevant context from documents:
{{.Context}}

Question: {{.Query}}

Strictly follow these rules when responding:`

var promptTmpl = template.Must(template.New("answer").Parse(promptTemplate))

// BuildPrompt assembles the single generation prompt: persona, recent turns
// in chronological order, retrieved chunks attributed to their source files,
// and the current query.
func BuildPrompt(agent *models.Agent, history []models.Message, hits []vector.Hit, query string) (string, error) {
	data := struct {
		AgentName    string
		Instructions string
		History      string
		Context      string
		Query        string
	}{
		AgentName:    agent.Name,
		Instructions: agent.Instructions,
		History:      formatHistory(history),
		Context:      formatContext(hits),
		Query:        query,
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("answer: build prompt: %w", err)
	}
	return buf.String(), nil
}

// formatHistory renders turns as alternating User/AI lines.
func formatHistory(history []models.Message) string {
	if len(history) == 0 {
		return "(no previous conversation)"
	}
	var b strings.Builder
	for _, m := range history {
		role := "AI"
		if m.IsUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatContext renders each retrieved chunk attributed to its source file.
func formatContext(hits []vector.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		filename := h.Filename
		if filename == "" {
			filename = "document"
		}
		parts[i] = fmt.Sprintf("From %s:\n%s", filename, h.Text)
	}
	return strings.Join(parts, "\n\n")
}
