package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/joelkehle/techtransfer-enrich/internal/enrich"
	"github.com/joelkehle/techtransfer-enrich/internal/report"
)

func newEnrichCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run patent detection and, optionally, classification and assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords(cmd)
			if err != nil {
				return err
			}
			doClassify, _ := cmd.Flags().GetBool("classify")
			doAssess, _ := cmd.Flags().GetBool("assess")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			if concurrency <= 0 {
				concurrency = a.cfg.MaxConcurrent
			}

			opts := []enrich.PipelineOption{enrich.WithLogger(a.logger)}
			if doClassify {
				c, err := a.newClassifier(cmd, a.cfg.ClassifierModel)
				if err != nil {
					return err
				}
				opts = append(opts, enrich.WithClassifier(c))
			}
			if doAssess {
				as, err := a.newAssessor(cmd, a.cfg.AssessorModel)
				if err != nil {
					return err
				}
				opts = append(opts, enrich.WithAssessor(as))
			}

			res, runErr := enrich.NewPipeline(opts...).Run(cmd.Context(), records,
				enrich.Options{Classify: doClassify, Assess: doAssess, Concurrency: concurrency},
				func(stage string, done, total int) {
					if stage != enrich.StagePatentStatus {
						a.progress(stage)(done, total)
					}
				})
			if err := a.writeOutput(cmd, res); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}

			summary := report.Summarize(res)
			for _, stage := range slices.Sorted(maps.Keys(res.Metadata.Usage)) {
				a.printStats(stage, res.Metadata.Usage[stage])
			}
			if path, _ := cmd.Flags().GetString("report"); path != "" {
				if err := report.WriteReport(cmd.Context(), path, summary, res, a.pdfPrinter()); err != nil {
					return &enrich.StageError{Stage: "report", Err: err}
				}
				fmt.Fprintf(a.stderr, "wrote %s (run %s)\n", path, summary.RunID)
			}
			return nil
		},
	}
	addInputFlags(cmd)
	cmd.Flags().Bool("classify", false, "classify records into the taxonomy")
	cmd.Flags().Bool("assess", false, "assess commercialization opportunity")
	cmd.Flags().Int("concurrency", 0, "concurrent requests per stage (default from MAX_CONCURRENT_REQUESTS)")
	cmd.Flags().String("report", "", "write a summary report (.md, .html, .pdf, .xlsx or .json)")
	return cmd
}
