package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/visualization"
	"github.com/spf13/cobra"
)

func newQuartilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quartiles",
		Short: "Show average percentiles per quartile",
		Long: `Group participants by quartile and average both percentile columns in
each group.

Grouping by test score quartile gives the classic Dunning-Kruger chart:
the bottom quartile rates itself well above its actual standing.

Examples:
  dksim quartiles                                  # Both groupings
  dksim quartiles --by perceived_ability_quartile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")
			jsonOut, _ := cmd.Flags().GetBool("json")

			columns := simulation.GroupingColumns()
			if by != "" {
				columns = []string{by}
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.generate(cmd)
			if err != nil {
				return err
			}

			views := make([]*simulation.QuartileAverageView, 0, len(columns))
			for _, col := range columns {
				view, err := simulation.QuartileAverages(t, col)
				if err != nil {
					return err
				}
				views = append(views, view)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"params": t.Params,
					"views":  views,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", t.Params)
			for _, view := range views {
				fmt.Fprintln(out)
				if err := visualization.RenderQuartilesText(out, view); err != nil {
					return err
				}
			}
			return nil
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().String("by", "", "Grouping column: test_score_quartile or perceived_ability_quartile (default: both)")

	return cmd
}
