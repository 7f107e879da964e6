package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/dksim/internal/export"
	"github.com/nvandessel/dksim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs saved with generate --format sqlite",
		Long: `List and re-export runs stored in a SQLite database.

Examples:
  dksim generate --format sqlite -o runs.db
  dksim runs list --db runs.db
  dksim runs show <run-id> --db runs.db --format csv`,
	}

	cmd.PersistentFlags().String("db", "", "SQLite database written by generate --format sqlite")
	cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
	)

	return cmd
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dbPath, _ := cmd.Flags().GetString("db")

			s, err := openRunStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs stored.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tPARTICIPANTS\tCORRELATION\tSEED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%g\t%d\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Params.Participants, r.Params.Correlation, r.Params.Seed)
			}
			return tw.Flush()
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dbPath, _ := cmd.Flags().GetString("db")
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			if jsonOut && !cmd.Flags().Changed("format") {
				formatName = string(export.FormatJSON)
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			s, err := openRunStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			t, err := s.LoadRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if format == export.FormatSQLite {
				if output == "" {
					return fmt.Errorf("--format sqlite requires -o <path>")
				}
				return saveToSQLite(cmd, t, output, jsonOut)
			}
			return writeTable(cmd, t, format, output)
		},
	}

	cmd.Flags().String("format", string(export.FormatTable), "Output format: table, csv, json, arrow, or sqlite")
	cmd.Flags().StringP("output", "o", "", "Output file path")

	return cmd
}

// openRunStore opens an existing database; unlike generate it never creates
// one.
func openRunStore(path string) (*store.SQLiteRunStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
