package visualization

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nvandessel/dksim/internal/simulation"
)

// barWidth is the width of a 100th-percentile bar in text output.
const barWidth = 40

// RenderQuartilesText writes a quartile-average view as a table with a bar
// per average, for terminals without a browser.
func RenderQuartilesText(w io.Writer, view *simulation.QuartileAverageView) error {
	if _, err := fmt.Fprintf(w, "%s\n", headerFor(view.Column)); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tvariable\taverage\t\n", view.Column)
	for _, row := range view.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%6.2f\t%s\n", row.Quartile, row.Variable, row.Average, bar(row.Average))
	}
	return tw.Flush()
}

// RenderSummaryText writes a summary: the observed percentile correlation
// and how far each test score quartile over- or underestimates itself.
func RenderSummaryText(w io.Writer, s simulation.Summary) error {
	fmt.Fprintf(w, "Participants: %d\n", s.Participants)
	fmt.Fprintf(w, "Parameters:   %s\n", s.Params)
	if s.PercentileCorrelation != nil {
		fmt.Fprintf(w, "Observed percentile correlation: %.3f\n", *s.PercentileCorrelation)
	} else {
		fmt.Fprintln(w, "Observed percentile correlation: undefined")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "quartile\tparticipants\ttest_score\tperceived_ability\toverestimate\t")
	for _, g := range s.Gaps {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%+.2f\t\n",
			g.Quartile, g.Participants, g.TestScore, g.Perceived, g.Overestimate)
	}
	return tw.Flush()
}

// RenderScatterText draws the scatter view as a coarse character grid,
// test score on the x axis and perceived ability on the y axis.
func RenderScatterText(w io.Writer, t *simulation.Table, cols, rows int) error {
	if cols < 2 || rows < 2 {
		return fmt.Errorf("%w: scatter grid must be at least 2x2, got %dx%d", simulation.ErrInvalidArgument, cols, rows)
	}

	grid := make([][]byte, rows)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", cols))
	}
	for _, p := range simulation.Scatter(t) {
		x := p.TestScorePercentile * (cols - 1) / 99
		y := (rows - 1) - p.PerceivedAbilityPercentile*(rows-1)/99
		x = min(max(x, 0), cols-1)
		y = min(max(y, 0), rows-1)
		switch grid[y][x] {
		case ' ':
			grid[y][x] = '.'
		case '.':
			grid[y][x] = 'o'
		default:
			grid[y][x] = '@'
		}
	}

	fmt.Fprintf(w, "%s\n", HeaderScatter)
	for _, line := range grid {
		if _, err := fmt.Fprintf(w, "|%s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "+%s\n", strings.Repeat("-", cols))
	return err
}

func headerFor(column string) string {
	switch column {
	case simulation.ColumnTestScoreQuartile:
		return HeaderByTestScoreQuartile
	case simulation.ColumnPerceivedAbilityQuartile:
		return HeaderByPerceivedAbilityQuartile
	default:
		return column
	}
}

func bar(average float64) string {
	n := int(average * barWidth / 100)
	n = min(max(n, 0), barWidth)
	return strings.Repeat("#", n)
}
