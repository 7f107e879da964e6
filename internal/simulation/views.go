package simulation

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Variable names used in the quartile-average view.
const (
	VariableTestScore        = "test_score"
	VariablePerceivedAbility = "perceived_ability"
)

// Variables returns the variable names in legend order.
func Variables() []string {
	return []string{VariableTestScore, VariablePerceivedAbility}
}

// Point is one participant in the scatter view.
type Point struct {
	TestScorePercentile        int `json:"test_score_percentile"`
	PerceivedAbilityPercentile int `json:"perceived_ability_percentile"`
}

// Scatter returns one point per participant, in participant order.
func Scatter(t *Table) []Point {
	points := make([]Point, 0, t.Len())
	for _, r := range t.Records {
		points = append(points, Point{
			TestScorePercentile:        r.TestScorePercentile,
			PerceivedAbilityPercentile: r.PerceivedAbilityPercentile,
		})
	}
	return points
}

// QuartileAverage is the mean percentile of one variable within one
// quartile group.
type QuartileAverage struct {
	Quartile Quartile `json:"quartile"`
	Variable string   `json:"variable"`
	Average  float64  `json:"average"`
}

// QuartileAverageView is the quartile-average view for one grouping column.
type QuartileAverageView struct {
	// Column is the grouping column, ColumnTestScoreQuartile or
	// ColumnPerceivedAbilityQuartile.
	Column string `json:"column"`

	// Rows are ordered by quartile (Bottom first), then by variable
	// (test_score, perceived_ability). Empty groups have no rows.
	Rows []QuartileAverage `json:"rows"`
}

// Values returns the rows in long format keyed the way the chart layer
// expects: the grouping column name, "variable" and "average".
func (v *QuartileAverageView) Values() []map[string]any {
	values := make([]map[string]any, 0, len(v.Rows))
	for _, row := range v.Rows {
		values = append(values, map[string]any{
			v.Column:   row.Quartile.String(),
			"variable": row.Variable,
			"average":  row.Average,
		})
	}
	return values
}

// Lookup returns the average for a quartile and variable, if present.
func (v *QuartileAverageView) Lookup(q Quartile, variable string) (float64, bool) {
	for _, row := range v.Rows {
		if row.Quartile == q && row.Variable == variable {
			return row.Average, true
		}
	}
	return 0, false
}

// GroupingColumns returns the columns QuartileAverages accepts.
func GroupingColumns() []string {
	return []string{ColumnTestScoreQuartile, ColumnPerceivedAbilityQuartile}
}

// QuartileAverages groups participants by the quartile column and averages
// both percentile columns within each group.
func QuartileAverages(t *Table, column string) (*QuartileAverageView, error) {
	var groupOf func(Record) Quartile
	switch column {
	case ColumnTestScoreQuartile:
		groupOf = func(r Record) Quartile { return r.TestScoreQuartile }
	case ColumnPerceivedAbilityQuartile:
		groupOf = func(r Record) Quartile { return r.PerceivedAbilityQuartile }
	default:
		return nil, fmt.Errorf("%w: grouping column must be %q or %q, got %q",
			ErrInvalidArgument, ColumnTestScoreQuartile, ColumnPerceivedAbilityQuartile, column)
	}

	var testScores, perceived [NumQuartiles][]float64
	for _, r := range t.Records {
		g := groupOf(r)
		testScores[g] = append(testScores[g], float64(r.TestScorePercentile))
		perceived[g] = append(perceived[g], float64(r.PerceivedAbilityPercentile))
	}

	view := &QuartileAverageView{Column: column}
	for _, q := range Quartiles() {
		if len(testScores[q]) == 0 {
			continue
		}
		view.Rows = append(view.Rows,
			QuartileAverage{Quartile: q, Variable: VariableTestScore, Average: stat.Mean(testScores[q], nil)},
			QuartileAverage{Quartile: q, Variable: VariablePerceivedAbility, Average: stat.Mean(perceived[q], nil)},
		)
	}
	return view, nil
}
