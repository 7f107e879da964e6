package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/dksim/internal/export"
	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/store"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic participant table",
		Long: `Generate one row per participant with test score and perceived ability
percentiles and quartiles.

The same parameters always produce the same table.

Examples:
  dksim generate                                   # Aligned table on stdout
  dksim generate --participants 200 --correlation 0.2 --format csv
  dksim generate --format arrow -o run.arrow       # Apache Arrow IPC stream
  dksim generate --format sqlite -o runs.db        # Append the run to a database`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if jsonOut && !cmd.Flags().Changed("format") {
				formatName = string(export.FormatJSON)
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			if format.NeedsPath() && output == "" {
				return fmt.Errorf("%w: --format %s requires -o <path>", simulation.ErrInvalidArgument, format)
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

			if format == export.FormatSQLite {
				return saveToSQLite(cmd, t, output, jsonOut)
			}
			return writeTable(cmd, t, format, output)
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().String("format", string(export.FormatTable), "Output format: table, csv, json, arrow, or sqlite")
	cmd.Flags().StringP("output", "o", "", "Output file path (required for sqlite)")

	return cmd
}

// writeTable writes t to output, or to stdout when output is empty.
func writeTable(cmd *cobra.Command, t *simulation.Table, format export.Format, output string) error {
	if output == "" {
		w := cmd.OutOrStdout()
		if format.Binary() && isTerminal(w) {
			return fmt.Errorf("%w: refusing to write %s to a terminal, use -o or redirect stdout", simulation.ErrInvalidArgument, format)
		}
		return export.Write(w, t, format)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := export.Write(f, t, format); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d participants to %s\n", t.Len(), output)
	return nil
}

// saveToSQLite appends t as a new run to the database at path.
func saveToSQLite(cmd *cobra.Command, t *simulation.Table, path string, jsonOut bool) error {
	s, err := store.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	id, err := s.SaveRun(cmd.Context(), t)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"run_id":       id,
			"path":         path,
			"participants": t.Len(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s (%d participants) to %s\n", id, t.Len(), path)
	return nil
}

// isTerminal reports whether w is a character device such as a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
