package classifier

import (
	"strings"

	"github.com/joelkehle/techtransfer-enrich/internal/taxonomy"
)

const noDescription = "No description provided."

func buildPrompt(tax *taxonomy.Taxonomy, title, description string) string {
	if strings.TrimSpace(description) == "" {
		description = noDescription
	}
	var b strings.Builder
	b.WriteString("You are a technology classification expert. Classify university technology transfer listings into a field and subfield.\n\n")
	b.WriteString(tax.PromptText())
	b.WriteString(`

Instructions:
1. Read the technology title and description carefully
2. Identify the PRIMARY field this technology belongs to
3. Select the most specific subfield of that field
4. Give a confidence score from 0.0 to 1.0
5. If the technology spans several fields, choose the dominant one

Respond with ONLY a JSON object in this exact format:
{
    "top_field": "field name from the list above",
    "subfield": "subfield name from the list above",
    "confidence": 0.85,
    "reasoning": "brief explanation of the classification"
}

Technology to classify:
`)
	b.WriteString("Title: " + title + "\n")
	b.WriteString("Description: " + description + "\n\n")
	b.WriteString("JSON response:")
	return b.String()
}
