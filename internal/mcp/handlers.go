package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/dksim/internal/export"
	"github.com/nvandessel/dksim/internal/logging"
	"github.com/nvandessel/dksim/internal/pathutil"
	"github.com/nvandessel/dksim/internal/ratelimit"
	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/store"
	"github.com/nvandessel/dksim/internal/visualization"
)

// DefaultsResourceURI is the resource listing default parameters and the
// accepted ranges.
const DefaultsResourceURI = "dksim://params/defaults"

// registerTools registers all dksim tools with the MCP server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolGenerate,
		Description: "Simulate a Dunning-Kruger experiment: synthetic participants with test score and perceived ability percentiles and quartiles, plus a summary of how each quartile over- or underestimates itself",
	}, s.handleDksimGenerate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolQuartiles,
		Description: "Average test score and perceived ability percentiles per quartile, grouped by test score quartile and/or perceived ability quartile",
	}, s.handleDksimQuartiles)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolChart,
		Description: "Render the scatter plot and both quartile charts as Vega-Lite specs or a standalone HTML page",
	}, s.handleDksimChart)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolExport,
		Description: "Generate a table and write it to a file in the export directory as CSV, JSON, an Arrow IPC stream, or a run appended to a SQLite database",
	}, s.handleDksimExport)
}

// registerResources registers read-only resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         DefaultsResourceURI,
		Name:        "dksim-defaults",
		Description: "Default simulation parameters and the ranges offered by the interactive controls.",
		MIMEType:    "application/json",
	}, s.handleDefaultsResource)
}

func (s *Server) handleDefaultsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := json.MarshalIndent(map[string]any{
		"defaults":         s.cfg.Simulation.Params(),
		"controls":         s.cfg.Controls,
		"grouping_columns": simulation.GroupingColumns(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      DefaultsResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleDksimGenerate implements the dksim_generate tool.
func (s *Server) handleDksimGenerate(ctx context.Context, req *sdk.CallToolRequest, args DksimGenerateInput) (*sdk.CallToolResult, DksimGenerateOutput, error) {
	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolGenerate); err != nil {
		return nil, DksimGenerateOutput{}, err
	}

	t, runID, err := s.run(ctx, ratelimit.ToolGenerate, args.Participants, args.Correlation, args.Seed)
	if err != nil {
		return nil, DksimGenerateOutput{}, err
	}

	out := DksimGenerateOutput{
		RunID:   runID,
		Params:  t.Params,
		Summary: summaryOutput(simulation.Summarize(t)),
	}
	if !args.OmitRecords {
		out.Records = make([]RecordOutput, 0, t.Len())
		for _, r := range t.Records {
			out.Records = append(out.Records, RecordOutput{
				TestScorePercentile:        r.TestScorePercentile,
				PerceivedAbilityPercentile: r.PerceivedAbilityPercentile,
				TestScoreQuartile:          r.TestScoreQuartile.String(),
				PerceivedAbilityQuartile:   r.PerceivedAbilityQuartile.String(),
			})
		}
	}
	return nil, out, nil
}

// handleDksimQuartiles implements the dksim_quartiles tool.
func (s *Server) handleDksimQuartiles(ctx context.Context, req *sdk.CallToolRequest, args DksimQuartilesInput) (*sdk.CallToolResult, DksimQuartilesOutput, error) {
	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolQuartiles); err != nil {
		return nil, DksimQuartilesOutput{}, err
	}

	columns := simulation.GroupingColumns()
	if args.By != "" {
		columns = []string{args.By}
	}
	// Reject a bad column before spending a run on it.
	for _, col := range columns {
		if _, err := simulation.QuartileAverages(&simulation.Table{}, col); err != nil {
			return nil, DksimQuartilesOutput{}, err
		}
	}

	t, runID, err := s.run(ctx, ratelimit.ToolQuartiles, args.Participants, args.Correlation, args.Seed)
	if err != nil {
		return nil, DksimQuartilesOutput{}, err
	}

	out := DksimQuartilesOutput{RunID: runID, Params: t.Params}
	for _, col := range columns {
		view, err := simulation.QuartileAverages(t, col)
		if err != nil {
			return nil, DksimQuartilesOutput{}, err
		}
		vo := QuartileViewOutput{Column: view.Column, Rows: make([]QuartileRow, 0, len(view.Rows))}
		for _, row := range view.Rows {
			vo.Rows = append(vo.Rows, QuartileRow{
				Quartile: row.Quartile.String(),
				Variable: row.Variable,
				Average:  row.Average,
			})
		}
		out.Views = append(out.Views, vo)
	}
	return nil, out, nil
}

// handleDksimChart implements the dksim_chart tool.
func (s *Server) handleDksimChart(ctx context.Context, req *sdk.CallToolRequest, args DksimChartInput) (*sdk.CallToolResult, DksimChartOutput, error) {
	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolChart); err != nil {
		return nil, DksimChartOutput{}, err
	}

	format := visualization.FormatVega
	if args.Format != "" {
		f, err := visualization.ParseFormat(args.Format)
		if err != nil {
			return nil, DksimChartOutput{}, err
		}
		if f == visualization.FormatText {
			return nil, DksimChartOutput{}, fmt.Errorf("%w: format must be vega or html", simulation.ErrInvalidArgument)
		}
		format = f
	}

	t, runID, err := s.run(ctx, ratelimit.ToolChart, args.Participants, args.Correlation, args.Seed)
	if err != nil {
		return nil, DksimChartOutput{}, err
	}

	out := DksimChartOutput{RunID: runID, Params: t.Params, Format: string(format)}
	switch format {
	case visualization.FormatHTML:
		html, err := visualization.RenderHTML(t, s.cfg.Chart)
		if err != nil {
			return nil, DksimChartOutput{}, fmt.Errorf("render HTML: %w", err)
		}
		out.HTML = string(html)
	default:
		charts, err := visualization.Charts(t, s.cfg.Chart)
		if err != nil {
			return nil, DksimChartOutput{}, fmt.Errorf("render charts: %w", err)
		}
		out.Charts = charts
	}
	return nil, out, nil
}

// handleDksimExport implements the dksim_export tool.
func (s *Server) handleDksimExport(ctx context.Context, req *sdk.CallToolRequest, args DksimExportInput) (*sdk.CallToolResult, DksimExportOutput, error) {
	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolExport); err != nil {
		return nil, DksimExportOutput{}, err
	}

	format, err := export.ParseFormat(args.Format)
	if err != nil {
		return nil, DksimExportOutput{}, err
	}
	path, err := pathutil.ResolveExportPath(args.Path, s.exportDirs)
	if err != nil {
		return nil, DksimExportOutput{}, fmt.Errorf("%w: %v", simulation.ErrInvalidArgument, err)
	}

	t, runID, err := s.run(ctx, ratelimit.ToolExport, args.Participants, args.Correlation, args.Seed)
	if err != nil {
		return nil, DksimExportOutput{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, DksimExportOutput{}, fmt.Errorf("create export directory: %w", err)
	}
	if format == export.FormatSQLite {
		runID, err = saveRun(ctx, path, t)
	} else {
		err = writeFile(path, t, format)
	}
	if err != nil {
		return nil, DksimExportOutput{}, err
	}

	s.logger.Debug("exported run", "run_id", runID, "format", format, "path", pathutil.RedactPath(path))
	return nil, DksimExportOutput{
		RunID:        runID,
		Params:       t.Params,
		Format:       string(format),
		Path:         pathutil.RedactPath(path),
		Participants: t.Len(),
	}, nil
}

func writeFile(path string, t *simulation.Table, format export.Format) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := export.Write(f, t, format); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", format, err)
	}
	return f.Close()
}

func saveRun(ctx context.Context, path string, t *simulation.Table) (string, error) {
	rs, err := store.OpenSQLite(path)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer rs.Close()
	return rs.SaveRun(ctx, t)
}

// run resolves parameters against the configured defaults, validates them,
// generates the table and records the run.
func (s *Server) run(ctx context.Context, tool string, participants *int, correlation *float64, seed *int64) (*simulation.Table, string, error) {
	p := s.cfg.Simulation.Params()
	if participants != nil {
		p.Participants = *participants
	}
	if correlation != nil {
		p.Correlation = *correlation
	}
	if seed != nil {
		p.Seed = *seed
	}

	start := time.Now()
	entry := logging.RunEntry{Source: "mcp:" + tool, Params: p}

	err := p.Validate()
	var t *simulation.Table
	if err == nil {
		t, err = simulation.Generate(p)
	}
	entry.Duration = time.Since(start)
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.PercentileCorrelation = simulation.Summarize(t).PercentileCorrelation
	}
	runID := s.runLog.Record(entry)

	s.logger.Debug("tool call", "tool", tool, "run_id", runID, "params", p.String(), "error", entry.Error)
	if err != nil {
		return nil, "", err
	}
	return t, runID, nil
}

func summaryOutput(sum simulation.Summary) SummaryOutput {
	out := SummaryOutput{
		Participants:          sum.Participants,
		PercentileCorrelation: sum.PercentileCorrelation,
		Gaps:                  make([]GapOutput, 0, len(sum.Gaps)),
	}
	for _, g := range sum.Gaps {
		out.Gaps = append(out.Gaps, GapOutput{
			Quartile:     g.Quartile.String(),
			Participants: g.Participants,
			TestScore:    g.TestScore,
			Perceived:    g.Perceived,
			Overestimate: g.Overestimate,
		})
	}
	return out
}
