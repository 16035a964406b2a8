package main

import (
	"github.com/spf13/cobra"

	"github.com/joelkehle/techtransfer-enrich/internal/config"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "techenrich",
		Short: "Enrich university technology listings",
		Long: `techenrich reads scraped technology-transfer listings and adds patent
status, a field classification and a commercialization assessment.

Patent detection is local. Classification and assessment call a language
model and are paced, retried and costed per configuration.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().String("config", "", "config file (default: ./techenrich.yaml or ~/.config/techenrich/techenrich.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = a.v.BindPFlag(config.KeyLogLevel, root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newDetectCmd(a),
		newClassifyCmd(a),
		newAssessCmd(a),
		newEnrichCmd(a),
		newListFieldsCmd(a),
		newPricingCmd(a),
	)
	return root
}
