package assessor

import (
	"fmt"
	"strings"

	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

const trlScale = `Hybrid TRL Scale:
- Concept (TRL 1-3): Theory, research question, simulation or early lab work. No physical validation yet.
- Prototype:Early (TRL 4): Key components validated in the lab. A basic proof of concept exists.
- Prototype:Demonstrated (TRL 5-6): Tested in a relevant or operational environment. Performance data available.
- Prototype:Advanced (TRL 7): Full system prototype demonstrated in an operational environment.
- Market-ready (TRL 8-9): Qualified through testing, production-ready or already deployed.`

const tierChoices = "one of: Concept, Prototype:Early, Prototype:Demonstrated, Prototype:Advanced, Market-ready"

const trlGapGuide = `**TRL Gap Analysis**: Compare the maturity the inventor's language implies (marketing claims, hedging) with what the technical evidence supports. A high score means the technology sounds much more mature than it is.
   - inventor_implied_tier: the TRL tier the listing's language suggests ("ready for licensing" suggests Market-ready)
   - assessed_tier: the TRL tier the evidence actually supports
   - evidence_fields: the data fields that informed the assessment`

const falseBarrierGuide = `**False Barrier Detection**: Infer the main barrier to commercialization (regulation, scale-up, adoption), stated or implied, and judge whether it is a real blocker or overstated. A high score means the barrier is likely false or overstated.
   - stated_barrier: the barrier identified
   - rebuttal: why it may be overstated
   - barrier_source_field: the field the barrier was inferred from, such as "description" or "advantages"
   - market_context: market context supporting the rebuttal`

const altApplicationGuide = `**Alternative Application Discovery**: Suggest up to 3 plausible uses beyond the stated one, grounded in the underlying mechanism. A high score means strong alternatives exist.
   - original_application: the primary application stated in the listing
   - suggested_applications: up to 3 entries with application, reasoning and market_signal`

func trlGapFormat() string {
	return fmt.Sprintf(`  "trl_gap": {
    "score": 0.0,
    "confidence": 0.0,
    "inventor_implied_tier": "%s",
    "assessed_tier": "%s",
    "evidence_fields": ["raw_data field names used"],
    "reasoning": "brief explanation"
  }`, tierChoices, tierChoices)
}

const falseBarrierFormat = `  "false_barrier": {
    "score": 0.0,
    "confidence": 0.0,
    "stated_barrier": "the main barrier identified",
    "rebuttal": "why the barrier may be overstated",
    "barrier_source_field": "description",
    "market_context": "relevant market context",
    "reasoning": "brief explanation"
  }`

const altApplicationFormat = `  "alt_application": {
    "score": 0.0,
    "confidence": 0.0,
    "original_application": "stated primary application",
    "suggested_applications": [
      {"application": "alternative use", "reasoning": "why plausible", "market_signal": "supporting evidence"}
    ],
    "reasoning": "brief explanation"
  }`

func buildPrompt(tier Tier, title, description string, m record.Metadata) string {
	var b strings.Builder
	if tier == TierFull {
		b.WriteString("You are a technology commercialization expert. Assess the following university technology listing across three categories.\n\n")
	} else {
		b.WriteString("You are a technology commercialization expert. Assess the following university technology listing.\n\n")
	}
	b.WriteString(trlScale)
	b.WriteString("\n\n")

	if tier == TierFull {
		b.WriteString("Categories to assess:\n\n")
		fmt.Fprintf(&b, "1. %s\n\n2. %s\n\n3. %s\n\n", trlGapGuide, falseBarrierGuide, altApplicationGuide)
		b.WriteString("Respond with ONLY a JSON object in this exact format:\n{\n")
		b.WriteString(trlGapFormat() + ",\n" + falseBarrierFormat + ",\n" + altApplicationFormat + "\n}\n\n")
	} else {
		b.WriteString("Category to assess:\n\n")
		b.WriteString(trlGapGuide + "\n\n")
		b.WriteString("Respond with ONLY a JSON object in this exact format:\n{\n")
		b.WriteString(trlGapFormat() + "\n}\n\n")
	}

	b.WriteString("Technology to assess:\n")
	b.WriteString("Title: " + title + "\n")
	b.WriteString("Description: " + description + "\n\n")
	b.WriteString("Additional data:\n")
	b.WriteString(formatMetadata(m))
	b.WriteString("\n\nJSON response:")
	return b.String()
}

func formatMetadata(m record.Metadata) string {
	var lines []string
	for _, k := range m.Keys() {
		if m.Has(k) {
			lines = append(lines, fmt.Sprintf("  %s: %s", k, record.Format(m[k])))
		}
	}
	if len(lines) == 0 {
		return "No additional data available."
	}
	return strings.Join(lines, "\n")
}
