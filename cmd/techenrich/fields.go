package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joelkehle/techtransfer-enrich/internal/taxonomy"
)

func newListFieldsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-fields",
		Short: "Print the classification taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range taxonomy.Default().Listing() {
				fmt.Fprintln(a.stdout, f.Name)
				for _, sub := range f.Subfields {
					fmt.Fprintf(a.stdout, "  - %s\n", sub)
				}
			}
			return nil
		},
	}
}
