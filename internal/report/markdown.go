package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joelkehle/techtransfer-enrich/internal/assessor"
	"github.com/joelkehle/techtransfer-enrich/internal/completion"
	"github.com/joelkehle/techtransfer-enrich/internal/patentstatus"
)

// Markdown renders the summary. Sections for stages that did not run are
// omitted.
func Markdown(s Summary) string {
	var b strings.Builder
	b.WriteString("# Technology Enrichment Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", s.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", s.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- Records: %d\n", s.Records)
	if len(s.Stages) > 0 {
		fmt.Fprintf(&b, "- Stages: %s\n", strings.Join(s.Stages, ", "))
	}
	fmt.Fprintf(&b, "- Total cost: $%.4f\n", s.TotalCost)

	b.WriteString("\n## Patent Status\n\n")
	b.WriteString("| Status | Count | Share |\n|---|---:|---:|\n")
	for _, st := range patentstatus.Statuses {
		n := s.PatentStatus[st]
		fmt.Fprintf(&b, "| %s | %d | %s |\n", st, n, percent(n, s.Records))
	}

	if len(s.Fields) > 0 {
		b.WriteString("\n## Field Distribution\n\n")
		b.WriteString("| Field | Count | Share |\n|---|---:|---:|\n")
		total := 0
		for _, n := range s.Fields {
			total += n
		}
		for _, f := range sortedByCount(s.Fields) {
			fmt.Fprintf(&b, "| %s | %d | %s |\n", f, s.Fields[f], percent(s.Fields[f], total))
		}
	}

	if len(s.Tiers) > 0 {
		b.WriteString("\n## Assessment Tiers\n\n")
		b.WriteString("| Tier | Count |\n|---|---:|\n")
		for _, t := range []assessor.Tier{assessor.TierFull, assessor.TierLimited, assessor.TierSkipped} {
			fmt.Fprintf(&b, "| %s | %d |\n", t, s.Tiers[t])
		}
	}

	if c := s.Composite; c != nil {
		b.WriteString("\n## Composite Scores\n\n")
		b.WriteString("| Assessed | Mean | Median | P90 | Min | Max |\n|---:|---:|---:|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| %d | %.3f | %.3f | %.3f | %.3f | %.3f |\n", c.Count, c.Mean, c.Median, c.P90, c.Min, c.Max)
	}

	if len(s.TopOpportunities) > 0 {
		b.WriteString("\n## Top Opportunities\n\n")
		b.WriteString("| # | Technology | Field | Tier | Score |\n|---:|---|---|---|---:|\n")
		for i, o := range s.TopOpportunities {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %.3f |\n", i+1, cell(o.Title), cell(o.Field), o.Tier, o.Score)
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		b.WriteString("| Stage | Kind | Count |\n|---|---|---:|\n")
		for _, stage := range sortedKeys(s.Failures) {
			kinds := s.Failures[stage]
			names := make([]string, 0, len(kinds))
			for k := range kinds {
				names = append(names, string(k))
			}
			sort.Strings(names)
			for _, k := range names {
				fmt.Fprintf(&b, "| %s | %s | %d |\n", stage, k, kinds[completion.Kind(k)])
			}
		}
	}

	if len(s.Usage) > 0 {
		b.WriteString("\n## Usage\n\n")
		b.WriteString("| Stage | Requests | Completed | Tokens | Cost |\n|---|---:|---:|---:|---:|\n")
		for _, stage := range sortedKeys(s.Usage) {
			u := s.Usage[stage]
			fmt.Fprintf(&b, "| %s | %d | %d | %d | $%.4f |\n", stage, u.Requests, u.Completed, u.TotalTokens, u.TotalCost)
		}
	}
	return b.String()
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

// cell keeps free text from breaking a table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

func sortedByCount(m map[string]int) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool { return m[keys[i]] > m[keys[j]] })
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
