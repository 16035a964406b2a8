package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelkehle/techtransfer-enrich/internal/assessor"
)

func newAssessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess commercialization opportunity signals",
		Long: `Assess TRL gap, false barriers and alternative applications. Records
without a description are skipped; records with fewer than two rich
metadata fields get a TRL-gap-only assessment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords(cmd)
			if err != nil {
				return err
			}
			model, _ := cmd.Flags().GetString("model")
			if model == "" {
				model = a.cfg.AssessorModel
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if dryRun {
				tiers := map[assessor.Tier]int{}
				for _, r := range records {
					tier := assessor.Select(r.Description, r.Metadata)
					tiers[tier]++
					fmt.Fprintf(a.stdout, "%s\t%s\trichness=%d\t%s\n", r.ID, tier, assessor.Richness(r.Metadata), r.Title)
				}
				fmt.Fprintf(a.stderr, "full=%d limited=%d skipped=%d\n", tiers[assessor.TierFull], tiers[assessor.TierLimited], tiers[assessor.TierSkipped])
				return nil
			}

			as, err := a.newAssessor(cmd, model)
			if err != nil {
				return err
			}
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			if concurrency <= 0 {
				concurrency = a.cfg.MaxConcurrent
			}
			out := as.AssessBatch(cmd.Context(), assessor.ItemsFromRecords(records), concurrency, a.progress("assessment"))
			if err := a.writeOutput(cmd, out); err != nil {
				return err
			}
			a.printStats("assessment", as.Stats())
			return cmd.Context().Err()
		},
	}
	addInputFlags(cmd)
	cmd.Flags().String("model", "", "model identifier (default from ASSESSOR_MODEL)")
	cmd.Flags().Bool("dry-run", false, "print the tier per record without calling the model")
	cmd.Flags().Int("concurrency", 0, "concurrent requests (default from MAX_CONCURRENT_REQUESTS)")
	return cmd
}

func (a *app) newAssessor(cmd *cobra.Command, model string) (*assessor.Assessor, error) {
	svc, err := a.newService(cmd.Context(), a.cfg)
	if err != nil {
		return nil, err
	}
	opts, err := a.runnerOptions()
	if err != nil {
		return nil, err
	}
	return assessor.New(svc,
		assessor.WithModel(model),
		assessor.WithLogger(a.logger),
		assessor.WithRunnerOptions(opts...),
	), nil
}
