package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPricingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pricing",
		Short: "Print the per-model token prices used for cost tracking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prices, err := a.prices()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tINPUT $/MTok\tOUTPUT $/MTok")
			for _, m := range prices.Models() {
				p, _ := prices.Lookup(m)
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", m, p.Input, p.Output)
			}
			return w.Flush()
		},
	}
}
