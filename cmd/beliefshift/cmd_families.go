package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"beliefshift/internal/display"
	"beliefshift/internal/format"
	"beliefshift/internal/metric"
)

func newFamiliesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the registered metric families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tb := format.NewTable(a.cfg.OutputMode())
			tb.Header("family", "order", "name")
			for _, f := range metric.Families() {
				tb.Row(f.String(), f.Order().String(), display.Family(f.String()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), tb.String())
			return nil
		},
	}
}
