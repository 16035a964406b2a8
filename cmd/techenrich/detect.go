package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelkehle/techtransfer-enrich/internal/patentstatus"
)

type detection struct {
	ID     string              `json:"id"`
	Title  string              `json:"title"`
	URL    string              `json:"url,omitempty"`
	Patent patentstatus.Result `json:"patent_status"`
}

func newDetectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect-patents",
		Short: "Detect patent status for every record",
		Long: `Detect patent status from structured metadata, patent numbers in the
listing URL and keywords in the title and description. No external calls
are made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords(cmd)
			if err != nil {
				return err
			}
			d := patentstatus.NewDetector()
			out := make([]detection, len(records))
			results := make([]patentstatus.Result, len(records))
			for i, r := range records {
				results[i] = d.DetectRecord(r)
				out[i] = detection{ID: r.ID, Title: r.Title, URL: r.URL, Patent: results[i]}
			}
			if err := a.writeOutput(cmd, out); err != nil {
				return err
			}
			printTally(a, patentstatus.Tally(results), len(records))
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}

func printTally(a *app, tally map[patentstatus.Status]int, total int) {
	fmt.Fprintf(a.stderr, "Patent status across %d records:\n", total)
	for _, s := range patentstatus.Statuses {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(tally[s]) / float64(total)
		}
		fmt.Fprintf(a.stderr, "  %-12s %6d  %5.1f%%\n", s, tally[s], pct)
	}
}
