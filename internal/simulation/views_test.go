package simulation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScatter(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 0.5, Participants: 50, Seed: 42})
	points := Scatter(table)
	require.Len(t, points, 50)
	for i, p := range points {
		require.Equal(t, table.Records[i].TestScorePercentile, p.TestScorePercentile)
		require.Equal(t, table.Records[i].PerceivedAbilityPercentile, p.PerceivedAbilityPercentile)
	}
}

func TestQuartileAverages_InvalidColumn(t *testing.T) {
	table := mustGenerate(t, DefaultParams())
	for _, column := range []string{"", "test_score_percentile", "quartile", "Test_Score_Quartile"} {
		view, err := QuartileAverages(table, column)
		require.ErrorIs(t, err, ErrInvalidArgument, "column %q", column)
		require.Nil(t, view)
	}
}

func TestQuartileAverages_CanonicalOrder(t *testing.T) {
	table := mustGenerate(t, DefaultParams())
	for _, column := range GroupingColumns() {
		view, err := QuartileAverages(table, column)
		require.NoError(t, err)
		require.Equal(t, column, view.Column)
		require.Len(t, view.Rows, 2*NumQuartiles)

		for i, row := range view.Rows {
			require.Equal(t, Quartile(i/2), row.Quartile)
			require.Equal(t, Variables()[i%2], row.Variable)
			require.GreaterOrEqual(t, row.Average, 0.0)
			require.Less(t, row.Average, 100.0)
		}
	}
}

func TestQuartileAverages_FourParticipants(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 1, Participants: 4, Seed: 42})
	view, err := QuartileAverages(table, ColumnTestScoreQuartile)
	require.NoError(t, err)

	want := []float64{0, 25, 50, 75}
	for i, q := range Quartiles() {
		for _, variable := range Variables() {
			got, ok := view.Lookup(q, variable)
			require.True(t, ok)
			require.Equal(t, want[i], got, "%s %s", q, variable)
		}
	}
}

func TestQuartileAverages_GroupingVariableIsMonotonic(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 0.3, Participants: 400, Seed: 9})

	tests := []struct {
		column   string
		variable string
	}{
		{ColumnTestScoreQuartile, VariableTestScore},
		{ColumnPerceivedAbilityQuartile, VariablePerceivedAbility},
	}
	for _, tt := range tests {
		view, err := QuartileAverages(table, tt.column)
		require.NoError(t, err)
		prev := -1.0
		for _, q := range Quartiles() {
			avg, ok := view.Lookup(q, tt.variable)
			require.True(t, ok)
			require.Greater(t, avg, prev, "%s: %s average must rise with quartile", tt.column, tt.variable)
			prev = avg
		}
	}
}

func TestQuartileAverages_EmptyGroupsHaveNoRows(t *testing.T) {
	// Three participants leave the Bottom group empty.
	table := mustGenerate(t, Params{Correlation: 0.5, Participants: 3, Seed: 42})
	view, err := QuartileAverages(table, ColumnPerceivedAbilityQuartile)
	require.NoError(t, err)
	require.Len(t, view.Rows, 6)
	_, ok := view.Lookup(Bottom, VariableTestScore)
	require.False(t, ok)

	single := mustGenerate(t, Params{Correlation: 0.5, Participants: 1, Seed: 42})
	view, err = QuartileAverages(single, ColumnTestScoreQuartile)
	require.NoError(t, err)
	require.Len(t, view.Rows, 2)
	require.Equal(t, Top, view.Rows[0].Quartile)
	require.Equal(t, 0.0, view.Rows[0].Average)
}

func TestQuartileAverageView_Values(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 1, Participants: 4, Seed: 42})
	view, err := QuartileAverages(table, ColumnPerceivedAbilityQuartile)
	require.NoError(t, err)

	values := view.Values()
	require.Len(t, values, 8)
	require.Equal(t, map[string]any{
		ColumnPerceivedAbilityQuartile: "Bottom",
		"variable":                     VariableTestScore,
		"average":                      0.0,
	}, values[0])
	require.Equal(t, "Top", values[7][ColumnPerceivedAbilityQuartile])
	require.Equal(t, VariablePerceivedAbility, values[7]["variable"])
}

func TestSummarize_PerfectCorrelation(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 1, Participants: 100, Seed: 42})
	s := Summarize(table)

	require.Equal(t, 100, s.Participants)
	require.NotNil(t, s.PercentileCorrelation)
	require.InDelta(t, 1.0, *s.PercentileCorrelation, 1e-9)
	require.Len(t, s.Gaps, NumQuartiles)
	for _, g := range s.Gaps {
		require.InDelta(t, 0.0, g.Overestimate, 1e-9)
		require.Equal(t, 25, g.Participants)
	}
}

func TestSummarize_DunningKrugerPattern(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 0.3, Participants: 1000, Seed: 42})
	s := Summarize(table)

	require.Len(t, s.Gaps, NumQuartiles)
	require.Equal(t, Bottom, s.Gaps[0].Quartile)
	require.Greater(t, s.Gaps[0].Overestimate, 0.0, "bottom quartile overestimates itself")
	require.Equal(t, Top, s.Gaps[3].Quartile)
	require.Less(t, s.Gaps[3].Overestimate, 0.0, "top quartile underestimates itself")
}

func TestSummarize_SingleParticipant(t *testing.T) {
	table := mustGenerate(t, Params{Correlation: 0.5, Participants: 1, Seed: 42})
	s := Summarize(table)
	require.Nil(t, s.PercentileCorrelation)
	require.Len(t, s.Gaps, 1)

	_, err := json.Marshal(s)
	require.NoError(t, err)
}

func TestQuartile_Text(t *testing.T) {
	require.Equal(t, []string{"Bottom", "2nd", "3rd", "Top"}, QuartileLabels())
	for _, q := range Quartiles() {
		parsed, err := ParseQuartile(q.String())
		require.NoError(t, err)
		require.Equal(t, q, parsed)
	}

	_, err := ParseQuartile("1st")
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.Equal(t, "Quartile(7)", Quartile(7).String())
	_, err = Quartile(-1).MarshalText()
	require.Error(t, err)
}

func TestRecord_JSONUsesColumnNamesAndLabels(t *testing.T) {
	data, err := json.Marshal(Record{
		TestScorePercentile:        12,
		PerceivedAbilityPercentile: 70,
		TestScoreQuartile:          Bottom,
		PerceivedAbilityQuartile:   Third,
	})
	require.NoError(t, err)
	require.JSONEq(t, `{
		"test_score_percentile": 12,
		"perceived_ability_percentile": 70,
		"test_score_quartile": "Bottom",
		"perceived_ability_quartile": "3rd"
	}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, Third, back.PerceivedAbilityQuartile)
}
