// Package visualization renders simulation results as Vega-Lite charts,
// HTML reports, terminal text, and an interactive chart server.
package visualization

import (
	"fmt"

	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/simulation"
)

// Format specifies the output format for chart rendering.
type Format string

const (
	FormatVega Format = "vega"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// ParseFormat validates a chart format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatVega, FormatHTML, FormatText:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: unknown chart format %q (valid: html, vega, text)", simulation.ErrInvalidArgument, s)
	}
}

// VegaLiteSchema is the $schema of every generated spec.
const VegaLiteSchema = "https://vega.github.io/schema/vega-lite/v5.json"

// Chart headers, in page order.
const (
	HeaderScatter                    = "Test score vs. perceived ability"
	HeaderByTestScoreQuartile        = "Average percentiles by test score quartiles"
	HeaderByPerceivedAbilityQuartile = "Average percentiles by perceived ability quartiles"
)

// Chart is a titled Vega-Lite spec.
type Chart struct {
	ID     string         `json:"id"`
	Header string         `json:"header"`
	Spec   map[string]any `json:"spec"`
}

// Charts builds the three charts of the report: the scatter plot, then the
// quartile chart grouped by test score, then by perceived ability.
func Charts(t *simulation.Table, theme config.ChartConfig) ([]Chart, error) {
	if t == nil {
		return nil, fmt.Errorf("charts: nil table")
	}

	charts := []Chart{{
		ID:     "scatter",
		Header: HeaderScatter,
		Spec:   ScatterSpec(t, theme),
	}}

	headers := map[string]string{
		simulation.ColumnTestScoreQuartile:        HeaderByTestScoreQuartile,
		simulation.ColumnPerceivedAbilityQuartile: HeaderByPerceivedAbilityQuartile,
	}
	for _, col := range simulation.GroupingColumns() {
		view, err := simulation.QuartileAverages(t, col)
		if err != nil {
			return nil, fmt.Errorf("quartile averages by %s: %w", col, err)
		}
		charts = append(charts, Chart{
			ID:     col,
			Header: headers[col],
			Spec:   QuartileSpec(view, theme),
		})
	}
	return charts, nil
}

// ScatterSpec plots test score percentile against perceived ability
// percentile, one point per participant.
func ScatterSpec(t *simulation.Table, theme config.ChartConfig) map[string]any {
	values := make([]map[string]any, 0, t.Len())
	for _, p := range simulation.Scatter(t) {
		values = append(values, map[string]any{
			simulation.ColumnTestScorePercentile:        p.TestScorePercentile,
			simulation.ColumnPerceivedAbilityPercentile: p.PerceivedAbilityPercentile,
		})
	}

	return map[string]any{
		"$schema": VegaLiteSchema,
		"data":    map[string]any{"values": values},
		"mark":    "point",
		"encoding": map[string]any{
			"x": map[string]any{
				"field": simulation.ColumnTestScorePercentile,
				"type":  "quantitative",
			},
			"y": map[string]any{
				"field": simulation.ColumnPerceivedAbilityPercentile,
				"type":  "quantitative",
			},
		},
		"config": themeConfig(theme),
	}
}

// QuartileSpec draws one line per variable through the quartile averages.
// Quartiles with no participants are absent from the data, so the line
// simply skips them.
func QuartileSpec(view *simulation.QuartileAverageView, theme config.ChartConfig) map[string]any {
	return map[string]any{
		"$schema": VegaLiteSchema,
		"data":    map[string]any{"values": view.Values()},
		"mark":    map[string]any{"type": "line", "point": true},
		"encoding": map[string]any{
			"color": map[string]any{
				"field":  "variable",
				"type":   "nominal",
				"title":  nil,
				"sort":   simulation.Variables(),
				"legend": map[string]any{"orient": "bottom-right"},
			},
			"x": map[string]any{
				"field": view.Column,
				"type":  "nominal",
				"sort":  simulation.QuartileLabels(),
				"axis":  map[string]any{"labelAngle": 0},
			},
			"y": map[string]any{
				"field": "average",
				"type":  "quantitative",
				"title": "average_percentile",
				"scale": map[string]any{"domain": []int{0, 100}},
			},
		},
		"config": themeConfig(theme),
	}
}

// themeConfig turns the chart theme into a Vega-Lite config block.
func themeConfig(theme config.ChartConfig) map[string]any {
	axis := map[string]any{
		"grid":            theme.Grid,
		"labelColor":      theme.TextColor,
		"tickColor":       theme.TextColor,
		"titleColor":      theme.TextColor,
		"labelFontSize":   theme.LabelFontSize,
		"titleFontSize":   theme.TitleFontSize,
		"titleFontWeight": theme.TitleFontWeight,
	}

	view := map[string]any{
		"continuousWidth":  theme.Width,
		"continuousHeight": theme.Height,
		"discreteWidth":    theme.Width,
		"discreteHeight":   theme.Height,
	}
	if !theme.ViewStroke {
		view["stroke"] = nil
	}

	return map[string]any{
		"axis": axis,
		"legend": map[string]any{
			"labelColor":    theme.TextColor,
			"labelFontSize": theme.LabelFontSize,
		},
		"view": view,
	}
}
