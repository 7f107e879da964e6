// Package export writes generated tables in the formats the CLI and the
// HTTP API offer.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/nvandessel/dksim/internal/simulation"
)

// Format is an output format for a generated table.
type Format string

const (
	// FormatTable is an aligned text table for terminals.
	FormatTable Format = "table"
	// FormatCSV is comma-separated values with a header row.
	FormatCSV Format = "csv"
	// FormatJSON is {"params": ..., "records": [...]}.
	FormatJSON Format = "json"
	// FormatArrow is an Apache Arrow IPC stream.
	FormatArrow Format = "arrow"
	// FormatSQLite appends the run to a SQLite database.
	FormatSQLite Format = "sqlite"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatTable, FormatCSV, FormatJSON, FormatArrow, FormatSQLite}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q (valid: table, csv, json, arrow, sqlite)", simulation.ErrInvalidArgument, s)
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatArrow
}

// NeedsPath reports whether the format writes to a file rather than a stream.
func (f Format) NeedsPath() bool {
	return f == FormatSQLite
}

// Write writes t to w in the given streaming format. FormatSQLite is not a
// stream; use the store package for it.
func Write(w io.Writer, t *simulation.Table, format Format) error {
	if t == nil {
		return fmt.Errorf("export: nil table")
	}
	switch format {
	case FormatTable:
		return WriteTable(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatArrow:
		return WriteArrow(w, t)
	default:
		return fmt.Errorf("%w: format %q cannot be streamed", simulation.ErrInvalidArgument, format)
	}
}

// WriteCSV writes a header row of column names followed by one row per
// participant.
func WriteCSV(w io.Writer, t *simulation.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(simulation.Columns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range t.Records {
		row := []string{
			strconv.Itoa(r.TestScorePercentile),
			strconv.Itoa(r.PerceivedAbilityPercentile),
			r.TestScoreQuartile.String(),
			r.PerceivedAbilityQuartile.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the table as indented JSON.
func WriteJSON(w io.Writer, t *simulation.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteTable writes an aligned text table preceded by the parameters.
func WriteTable(w io.Writer, t *simulation.Table) error {
	if _, err := fmt.Fprintf(w, "# %s\n", t.Params); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	cols := simulation.Columns()
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", cols[0], cols[1], cols[2], cols[3])
	for _, r := range t.Records {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t\n",
			r.TestScorePercentile, r.PerceivedAbilityPercentile,
			r.TestScoreQuartile, r.PerceivedAbilityQuartile)
	}
	return tw.Flush()
}
