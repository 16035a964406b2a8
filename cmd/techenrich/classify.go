package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelkehle/techtransfer-enrich/internal/classifier"
)

func newClassifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify records into the technology taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.loadRecords(cmd)
			if err != nil {
				return err
			}
			model, _ := cmd.Flags().GetString("model")
			if model == "" {
				model = a.cfg.ClassifierModel
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if dryRun {
				c := classifier.New(nil, classifier.WithModel(model))
				for _, r := range records {
					fmt.Fprintf(a.stdout, "=== %s: %s (%s)\n%s\n\n", r.ID, r.Title, c.Model(), c.Prompt(r.Title, r.Description))
				}
				return nil
			}

			c, err := a.newClassifier(cmd, model)
			if err != nil {
				return err
			}
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			if concurrency <= 0 {
				concurrency = a.cfg.MaxConcurrent
			}
			out := c.ClassifyBatch(cmd.Context(), classifier.ItemsFromRecords(records), concurrency, a.progress("classification"))
			if err := a.writeOutput(cmd, out); err != nil {
				return err
			}
			a.printStats("classification", c.Stats())
			return cmd.Context().Err()
		},
	}
	addInputFlags(cmd)
	cmd.Flags().String("model", "", "model identifier (default from CLASSIFIER_MODEL)")
	cmd.Flags().Bool("dry-run", false, "print prompts without calling the model")
	cmd.Flags().Int("concurrency", 0, "concurrent requests (default from MAX_CONCURRENT_REQUESTS)")
	return cmd
}

func (a *app) newClassifier(cmd *cobra.Command, model string) (*classifier.Classifier, error) {
	svc, err := a.newService(cmd.Context(), a.cfg)
	if err != nil {
		return nil, err
	}
	opts, err := a.runnerOptions()
	if err != nil {
		return nil, err
	}
	return classifier.New(svc,
		classifier.WithModel(model),
		classifier.WithLogger(a.logger),
		classifier.WithRunnerOptions(opts...),
	), nil
}
