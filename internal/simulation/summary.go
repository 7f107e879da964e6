package simulation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// QuartileGap compares actual and perceived standing within one test score
// quartile. A positive Overestimate means the group rates itself higher than it scored.
type QuartileGap struct {
	Quartile     Quartile `json:"quartile"`
	TestScore    float64  `json:"test_score"`
	Perceived    float64  `json:"perceived_ability"`
	Overestimate float64  `json:"overestimate"`
	Participants int      `json:"participants"`
}

// Summary condenses a table into the numbers the charts illustrate.
type Summary struct {
	Params       Params `json:"params"`
	Participants int    `json:"participants"`

	// PercentileCorrelation is the sample Pearson correlation between the two
	// percentile columns. Nil when it is undefined (fewer than two
	// participants or a constant column).
	PercentileCorrelation *float64 `json:"percentile_correlation,omitempty"`

	// Gaps holds one entry per non-empty test score quartile.
	Gaps []QuartileGap `json:"gaps"`
}

// Summarize computes the summary of a generated table.
func Summarize(t *Table) Summary {
	s := Summary{Params: t.Params, Participants: t.Len()}

	if t.Len() >= 2 {
		x := toFloats(t.TestScorePercentiles())
		y := toFloats(t.PerceivedAbilityPercentiles())
		if c := stat.Correlation(x, y, nil); !math.IsNaN(c) {
			s.PercentileCorrelation = &c
		}
	}

	var counts [NumQuartiles]int
	for _, r := range t.Records {
		counts[r.TestScoreQuartile]++
	}

	view, err := QuartileAverages(t, ColumnTestScoreQuartile)
	if err != nil {
		// The column is a constant; QuartileAverages cannot reject it.
		panic(err)
	}
	for _, q := range Quartiles() {
		actual, ok := view.Lookup(q, VariableTestScore)
		if !ok {
			continue
		}
		perceived, _ := view.Lookup(q, VariablePerceivedAbility)
		s.Gaps = append(s.Gaps, QuartileGap{
			Quartile:     q,
			TestScore:    actual,
			Perceived:    perceived,
			Overestimate: perceived - actual,
			Participants: counts[q],
		})
	}
	return s
}

func toFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
