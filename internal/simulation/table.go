package simulation

// Column names of the generated table. Renderers and exporters address the
// table by these names, so they are part of the output contract.
const (
	ColumnTestScorePercentile        = "test_score_percentile"
	ColumnPerceivedAbilityPercentile = "perceived_ability_percentile"
	ColumnTestScoreQuartile          = "test_score_quartile"
	ColumnPerceivedAbilityQuartile   = "perceived_ability_quartile"
)

// Columns returns the table's column names in output order.
func Columns() []string {
	return []string{
		ColumnTestScorePercentile,
		ColumnPerceivedAbilityPercentile,
		ColumnTestScoreQuartile,
		ColumnPerceivedAbilityQuartile,
	}
}

// Record is one participant.
type Record struct {
	TestScorePercentile        int      `json:"test_score_percentile"`
	PerceivedAbilityPercentile int      `json:"perceived_ability_percentile"`
	TestScoreQuartile          Quartile `json:"test_score_quartile"`
	PerceivedAbilityQuartile   Quartile `json:"perceived_ability_quartile"`
}

// Table is the output of Generate: one Record per participant, in
// participant order, plus the parameters that produced it.
type Table struct {
	Params  Params   `json:"params"`
	Records []Record `json:"records"`
}

// Len returns the number of participants.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// TestScorePercentiles returns the test score percentile column.
func (t *Table) TestScorePercentiles() []int {
	out := make([]int, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.TestScorePercentile
	}
	return out
}

// PerceivedAbilityPercentiles returns the perceived ability percentile column.
func (t *Table) PerceivedAbilityPercentiles() []int {
	out := make([]int, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.PerceivedAbilityPercentile
	}
	return out
}
