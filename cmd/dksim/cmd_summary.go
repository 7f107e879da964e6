package main

import (
	"encoding/json"

	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/visualization"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize how each quartile over- or underestimates itself",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.generate(cmd)
			if err != nil {
				return err
			}
			summary := simulation.Summarize(t)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return visualization.RenderSummaryText(cmd.OutOrStdout(), summary)
		},
	}

	addSimulationFlags(cmd)

	return cmd
}
