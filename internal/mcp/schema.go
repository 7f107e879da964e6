package mcp

import (
	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/visualization"
)

// DksimGenerateInput defines the input for dksim_generate tool.
// Omitted parameters fall back to the configured defaults.
type DksimGenerateInput struct {
	Participants *int     `json:"participants,omitempty" jsonschema:"Number of synthetic participants (at least 1, default 100)"`
	Correlation  *float64 `json:"correlation,omitempty" jsonschema:"Correlation between test score and perceived ability, from -1 to 1 (default 0.5)"`
	Seed         *int64   `json:"seed,omitempty" jsonschema:"Random seed; the same parameters always produce the same table (default 42)"`
	OmitRecords  bool     `json:"omit_records,omitempty" jsonschema:"Return only the summary, not the per-participant table"`
}

// DksimGenerateOutput defines the output for dksim_generate tool.
type DksimGenerateOutput struct {
	RunID   string            `json:"run_id" jsonschema:"Identifier of this run in the run log"`
	Params  simulation.Params `json:"params" jsonschema:"Parameters the table was generated with"`
	Records []RecordOutput    `json:"records,omitempty" jsonschema:"One row per participant, in participant order"`
	Summary SummaryOutput     `json:"summary" jsonschema:"Observed correlation and per-quartile over- or underestimation"`
}

// RecordOutput is one participant.
type RecordOutput struct {
	TestScorePercentile        int    `json:"test_score_percentile"`
	PerceivedAbilityPercentile int    `json:"perceived_ability_percentile"`
	TestScoreQuartile          string `json:"test_score_quartile"`
	PerceivedAbilityQuartile   string `json:"perceived_ability_quartile"`
}

// SummaryOutput mirrors simulation.Summary with quartiles as labels.
type SummaryOutput struct {
	Participants          int         `json:"participants"`
	PercentileCorrelation *float64    `json:"percentile_correlation,omitempty" jsonschema:"Pearson correlation of the two percentile columns; absent when undefined"`
	Gaps                  []GapOutput `json:"gaps" jsonschema:"Per test score quartile: mean perceived minus mean actual percentile"`
}

// GapOutput is one test score quartile of the summary.
type GapOutput struct {
	Quartile     string  `json:"quartile"`
	Participants int     `json:"participants"`
	TestScore    float64 `json:"test_score"`
	Perceived    float64 `json:"perceived_ability"`
	Overestimate float64 `json:"overestimate"`
}

// DksimQuartilesInput defines the input for dksim_quartiles tool.
type DksimQuartilesInput struct {
	Participants *int     `json:"participants,omitempty" jsonschema:"Number of synthetic participants (at least 1, default 100)"`
	Correlation  *float64 `json:"correlation,omitempty" jsonschema:"Correlation between test score and perceived ability, from -1 to 1 (default 0.5)"`
	Seed         *int64   `json:"seed,omitempty" jsonschema:"Random seed; the same parameters always produce the same table (default 42)"`
	By           string   `json:"by,omitempty" jsonschema:"Grouping column: test_score_quartile or perceived_ability_quartile (default: both)"`
}

// DksimQuartilesOutput defines the output for dksim_quartiles tool.
type DksimQuartilesOutput struct {
	RunID  string               `json:"run_id" jsonschema:"Identifier of this run in the run log"`
	Params simulation.Params    `json:"params" jsonschema:"Parameters the table was generated with"`
	Views  []QuartileViewOutput `json:"views" jsonschema:"Average percentiles per quartile, one view per grouping column"`
}

// QuartileViewOutput is the quartile-average view for one grouping column.
type QuartileViewOutput struct {
	Column string        `json:"column"`
	Rows   []QuartileRow `json:"rows"`
}

// QuartileRow is the mean percentile of one variable within one quartile.
type QuartileRow struct {
	Quartile string  `json:"quartile"`
	Variable string  `json:"variable"`
	Average  float64 `json:"average"`
}

// DksimChartInput defines the input for dksim_chart tool.
type DksimChartInput struct {
	Participants *int     `json:"participants,omitempty" jsonschema:"Number of synthetic participants (at least 1, default 100)"`
	Correlation  *float64 `json:"correlation,omitempty" jsonschema:"Correlation between test score and perceived ability, from -1 to 1 (default 0.5)"`
	Seed         *int64   `json:"seed,omitempty" jsonschema:"Random seed; the same parameters always produce the same table (default 42)"`
	Format       string   `json:"format,omitempty" jsonschema:"Output format: vega (Vega-Lite JSON specs, default) or html (standalone page)"`
}

// DksimChartOutput defines the output for dksim_chart tool.
type DksimChartOutput struct {
	RunID  string                `json:"run_id" jsonschema:"Identifier of this run in the run log"`
	Params simulation.Params     `json:"params" jsonschema:"Parameters the table was generated with"`
	Format string                `json:"format" jsonschema:"Format of the rendered charts"`
	Charts []visualization.Chart `json:"charts,omitempty" jsonschema:"Vega-Lite specs with their headers (vega format)"`
	HTML   string                `json:"html,omitempty" jsonschema:"Standalone HTML page (html format)"`
}

// DksimExportInput defines the input for dksim_export tool.
type DksimExportInput struct {
	Participants *int     `json:"participants,omitempty" jsonschema:"Number of synthetic participants (at least 1, default 100)"`
	Correlation  *float64 `json:"correlation,omitempty" jsonschema:"Correlation between test score and perceived ability, from -1 to 1 (default 0.5)"`
	Seed         *int64   `json:"seed,omitempty" jsonschema:"Random seed; the same parameters always produce the same table (default 42)"`
	Format       string   `json:"format" jsonschema:"Export format: table, csv, json, arrow or sqlite (sqlite appends the run to the database)"`
	Path         string   `json:"path" jsonschema:"File name relative to the export directory (~/.dksim/exports), or an absolute path inside it"`
}

// DksimExportOutput defines the output for dksim_export tool.
type DksimExportOutput struct {
	RunID        string            `json:"run_id" jsonschema:"Identifier of this run in the run log, or the database row for sqlite"`
	Params       simulation.Params `json:"params" jsonschema:"Parameters the table was generated with"`
	Format       string            `json:"format" jsonschema:"Format written"`
	Path         string            `json:"path" jsonschema:"Redacted path of the written file"`
	Participants int               `json:"participants" jsonschema:"Number of rows written"`
}
