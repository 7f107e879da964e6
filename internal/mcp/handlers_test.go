package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/dksim/internal/export"
	"github.com/nvandessel/dksim/internal/logging"
	"github.com/nvandessel/dksim/internal/ratelimit"
	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/store"
	"github.com/nvandessel/dksim/internal/visualization"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestHandleDksimGenerate_Defaults(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleDksimGenerate(context.Background(), nil, DksimGenerateInput{})
	if err != nil {
		t.Fatalf("handleDksimGenerate failed: %v", err)
	}
	if out.Params != simulation.DefaultParams() {
		t.Errorf("Params = %+v, want defaults", out.Params)
	}
	if len(out.Records) != simulation.DefaultParticipants {
		t.Errorf("len(Records) = %d, want %d", len(out.Records), simulation.DefaultParticipants)
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
	if out.Summary.Participants != simulation.DefaultParticipants {
		t.Errorf("Summary.Participants = %d", out.Summary.Participants)
	}
	if len(out.Summary.Gaps) != simulation.NumQuartiles {
		t.Errorf("len(Summary.Gaps) = %d, want %d", len(out.Summary.Gaps), simulation.NumQuartiles)
	}
}

func TestHandleDksimGenerate_MatchesGenerate(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleDksimGenerate(context.Background(), nil, DksimGenerateInput{
		Participants: intPtr(20),
		Correlation:  floatPtr(-0.3),
		Seed:         int64Ptr(7),
	})
	if err != nil {
		t.Fatalf("handleDksimGenerate failed: %v", err)
	}

	want, err := simulation.Generate(simulation.Params{Participants: 20, Correlation: -0.3, Seed: 7})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(out.Records) != want.Len() {
		t.Fatalf("len(Records) = %d, want %d", len(out.Records), want.Len())
	}
	for i, r := range want.Records {
		got := out.Records[i]
		if got.TestScorePercentile != r.TestScorePercentile ||
			got.PerceivedAbilityPercentile != r.PerceivedAbilityPercentile ||
			got.TestScoreQuartile != r.TestScoreQuartile.String() ||
			got.PerceivedAbilityQuartile != r.PerceivedAbilityQuartile.String() {
			t.Errorf("record %d = %+v, want %+v", i, got, r)
		}
	}
}

func TestHandleDksimGenerate_OmitRecords(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleDksimGenerate(context.Background(), nil, DksimGenerateInput{OmitRecords: true})
	if err != nil {
		t.Fatalf("handleDksimGenerate failed: %v", err)
	}
	if out.Records != nil {
		t.Errorf("Records = %d entries, want none", len(out.Records))
	}
	if out.Summary.PercentileCorrelation == nil {
		t.Error("Summary.PercentileCorrelation is nil")
	}
}

func TestHandleDksimGenerate_InvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		input DksimGenerateInput
	}{
		{"zero participants", DksimGenerateInput{Participants: intPtr(0)}},
		{"negative participants", DksimGenerateInput{Participants: intPtr(-5)}},
		{"correlation above 1", DksimGenerateInput{Correlation: floatPtr(1.5)}},
		{"correlation below -1", DksimGenerateInput{Correlation: floatPtr(-2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t)
			_, _, err := server.handleDksimGenerate(context.Background(), nil, tt.input)
			if !errors.Is(err, simulation.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestHandleDksimGenerate_RateLimited(t *testing.T) {
	server := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{
		ratelimit.ToolGenerate: ratelimit.NewLimiter(0.001, 1),
	}

	ctx := context.Background()
	if _, _, err := server.handleDksimGenerate(ctx, nil, DksimGenerateInput{OmitRecords: true}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, _, err := server.handleDksimGenerate(ctx, nil, DksimGenerateInput{OmitRecords: true})
	if !errors.Is(err, ratelimit.ErrLimited) {
		t.Errorf("err = %v, want ErrLimited", err)
	}
}

func TestHandleDksimQuartiles(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	t.Run("both columns by default", func(t *testing.T) {
		_, out, err := server.handleDksimQuartiles(ctx, nil, DksimQuartilesInput{})
		if err != nil {
			t.Fatalf("handleDksimQuartiles failed: %v", err)
		}
		if len(out.Views) != 2 {
			t.Fatalf("len(Views) = %d, want 2", len(out.Views))
		}
		if out.Views[0].Column != simulation.ColumnTestScoreQuartile {
			t.Errorf("Views[0].Column = %q", out.Views[0].Column)
		}
		if out.Views[1].Column != simulation.ColumnPerceivedAbilityQuartile {
			t.Errorf("Views[1].Column = %q", out.Views[1].Column)
		}
		for _, v := range out.Views {
			if len(v.Rows) != 2*simulation.NumQuartiles {
				t.Errorf("%s: len(Rows) = %d, want %d", v.Column, len(v.Rows), 2*simulation.NumQuartiles)
			}
		}
	})

	t.Run("single column", func(t *testing.T) {
		_, out, err := server.handleDksimQuartiles(ctx, nil, DksimQuartilesInput{
			By:           simulation.ColumnPerceivedAbilityQuartile,
			Participants: intPtr(4),
			Correlation:  floatPtr(1),
		})
		if err != nil {
			t.Fatalf("handleDksimQuartiles failed: %v", err)
		}
		if len(out.Views) != 1 {
			t.Fatalf("len(Views) = %d, want 1", len(out.Views))
		}
		// With r=1 and N=4 each quartile holds one participant whose two
		// percentiles match.
		rows := out.Views[0].Rows
		for i := 0; i+1 < len(rows); i += 2 {
			if rows[i].Average != rows[i+1].Average {
				t.Errorf("quartile %s: averages differ: %v vs %v", rows[i].Quartile, rows[i].Average, rows[i+1].Average)
			}
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		_, _, err := server.handleDksimQuartiles(ctx, nil, DksimQuartilesInput{By: "shoe_size"})
		if !errors.Is(err, simulation.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestHandleDksimChart(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	t.Run("vega by default", func(t *testing.T) {
		_, out, err := server.handleDksimChart(ctx, nil, DksimChartInput{})
		if err != nil {
			t.Fatalf("handleDksimChart failed: %v", err)
		}
		if out.Format != string(visualization.FormatVega) {
			t.Errorf("Format = %q", out.Format)
		}
		if len(out.Charts) != 3 {
			t.Fatalf("len(Charts) = %d, want 3", len(out.Charts))
		}
		if out.Charts[0].Header != visualization.HeaderScatter {
			t.Errorf("Charts[0].Header = %q", out.Charts[0].Header)
		}
		if out.HTML != "" {
			t.Error("HTML set for vega format")
		}
		if _, err := json.Marshal(out); err != nil {
			t.Errorf("output does not marshal: %v", err)
		}
	})

	t.Run("html", func(t *testing.T) {
		_, out, err := server.handleDksimChart(ctx, nil, DksimChartInput{Format: "html"})
		if err != nil {
			t.Fatalf("handleDksimChart failed: %v", err)
		}
		if !strings.Contains(out.HTML, visualization.PageTitle) {
			t.Error("HTML does not contain the page title")
		}
		if out.Charts != nil {
			t.Error("Charts set for html format")
		}
	})

	t.Run("text rejected", func(t *testing.T) {
		_, _, err := server.handleDksimChart(ctx, nil, DksimChartInput{Format: "text"})
		if !errors.Is(err, simulation.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := server.handleDksimChart(ctx, nil, DksimChartInput{Format: "png"})
		if err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestHandlers_RecordRuns(t *testing.T) {
	dir := t.TempDir()
	runLog := logging.NewRunLog(dir, "debug")
	if runLog == nil {
		t.Fatal("NewRunLog returned nil at debug level")
	}
	defer runLog.Close()

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", RunLog: runLog})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx := context.Background()
	_, out, err := server.handleDksimGenerate(ctx, nil, DksimGenerateInput{OmitRecords: true})
	if err != nil {
		t.Fatalf("handleDksimGenerate failed: %v", err)
	}
	if _, _, err := server.handleDksimGenerate(ctx, nil, DksimGenerateInput{Participants: intPtr(0)}); err == nil {
		t.Fatal("expected error for zero participants")
	}
	runLog.Close()

	f, err := os.Open(filepath.Join(dir, logging.RunLogFile))
	if err != nil {
		t.Fatalf("open run log: %v", err)
	}
	defer f.Close()

	var entries []logging.RunEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e logging.RunEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("decode entry: %v", err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].RunID != out.RunID {
		t.Errorf("entries[0].RunID = %q, want %q", entries[0].RunID, out.RunID)
	}
	if entries[0].Source != "mcp:dksim_generate" {
		t.Errorf("entries[0].Source = %q", entries[0].Source)
	}
	if entries[0].Error != "" {
		t.Errorf("entries[0].Error = %q, want empty", entries[0].Error)
	}
	if entries[1].Error == "" {
		t.Error("entries[1].Error is empty for a rejected run")
	}
}

func setupExportServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", ExportDirs: []string{dir}})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, dir
}

func TestHandleDksimExport_Files(t *testing.T) {
	server, dir := setupExportServer(t)
	ctx := context.Background()

	tests := []struct {
		format string
		name   string
	}{
		{"csv", "run.csv"},
		{"json", "out/run.json"},
		{"arrow", "run.arrow"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, out, err := server.handleDksimExport(ctx, nil, DksimExportInput{
				Participants: intPtr(10),
				Format:       tt.format,
				Path:         tt.name,
			})
			if err != nil {
				t.Fatalf("handleDksimExport failed: %v", err)
			}
			if out.Participants != 10 {
				t.Errorf("Participants = %d, want 10", out.Participants)
			}
			if strings.Contains(out.Path, dir) {
				t.Errorf("Path %q is not redacted", out.Path)
			}
			info, err := os.Stat(filepath.Join(dir, tt.name))
			if err != nil {
				t.Fatalf("export file missing: %v", err)
			}
			if info.Size() == 0 {
				t.Error("export file is empty")
			}
		})
	}
}

func TestHandleDksimExport_ArrowRoundTrip(t *testing.T) {
	server, dir := setupExportServer(t)

	_, _, err := server.handleDksimExport(context.Background(), nil, DksimExportInput{
		Participants: intPtr(16),
		Seed:         int64Ptr(5),
		Format:       "arrow",
		Path:         "run.arrow",
	})
	if err != nil {
		t.Fatalf("handleDksimExport failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "run.arrow"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	got, err := export.ReadArrow(f)
	if err != nil {
		t.Fatalf("ReadArrow failed: %v", err)
	}
	want, err := simulation.Generate(simulation.Params{Participants: 16, Correlation: simulation.DefaultCorrelation, Seed: 5})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got.Params != want.Params || len(got.Records) != len(want.Records) {
		t.Fatalf("round trip = %+v (%d records), want %+v (%d records)", got.Params, got.Len(), want.Params, want.Len())
	}
	for i := range want.Records {
		if got.Records[i] != want.Records[i] {
			t.Errorf("record %d = %+v, want %+v", i, got.Records[i], want.Records[i])
		}
	}
}

func TestHandleDksimExport_SQLiteAppends(t *testing.T) {
	server, dir := setupExportServer(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 2; i++ {
		_, out, err := server.handleDksimExport(ctx, nil, DksimExportInput{Format: "sqlite", Path: "runs.db"})
		if err != nil {
			t.Fatalf("handleDksimExport failed: %v", err)
		}
		ids = append(ids, out.RunID)
	}
	if ids[0] == ids[1] {
		t.Errorf("both exports got run ID %q", ids[0])
	}

	rs, err := store.OpenSQLite(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer rs.Close()
	runs, err := rs.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
}

func TestHandleDksimExport_Rejects(t *testing.T) {
	server, dir := setupExportServer(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input DksimExportInput
	}{
		{"unknown format", DksimExportInput{Format: "xlsx", Path: "run.xlsx"}},
		{"path traversal", DksimExportInput{Format: "csv", Path: "../run.csv"}},
		{"absolute path outside", DksimExportInput{Format: "csv", Path: filepath.Join(t.TempDir(), "run.csv")}},
		{"empty path", DksimExportInput{Format: "csv"}},
		{"invalid params", DksimExportInput{Format: "csv", Path: "run.csv", Correlation: floatPtr(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleDksimExport(ctx, nil, tt.input)
			if !errors.Is(err, simulation.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("export dir has %d entries after rejected exports, want 0", len(entries))
	}
}
