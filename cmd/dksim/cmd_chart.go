package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/nvandessel/dksim/internal/visualization"
	"github.com/spf13/cobra"
)

// Size of the text scatter plot.
const (
	scatterCols = 60
	scatterRows = 20
)

func newChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the scatter and quartile charts",
		Long: `Render the three charts of a simulation run: test score against perceived
ability, and average percentiles by test score and by perceived ability
quartile.

Formats:
  html   standalone page (Vega-Lite), opened in the browser
  vega   the three Vega-Lite specs as JSON
  text   character plots for the terminal

With --serve, dksim starts a local server with sliders for the parameters
instead of writing a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			serve, _ := cmd.Flags().GetBool("serve")

			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if serve {
				p, err := a.resolveParams(cmd)
				if err != nil {
					return err
				}
				return runChartServer(cmd, a, p, noOpen)
			}

			t, err := a.generate(cmd)
			if err != nil {
				return err
			}

			switch format {
			case visualization.FormatVega:
				return writeVega(cmd, t, a.cfg.Chart, output)
			case visualization.FormatText:
				return writeText(cmd, t)
			default:
				return writeStaticHTML(cmd, t, a.cfg.Chart, output, noOpen)
			}
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().String("format", string(visualization.FormatHTML), "Output format: html, vega, or text")
	cmd.Flags().StringP("output", "o", "", "Output file path (html and vega formats)")
	cmd.Flags().Bool("no-open", false, "Don't open browser after generating HTML")
	cmd.Flags().Bool("serve", false, "Start a local server with interactive parameter controls")

	return cmd
}

func writeVega(cmd *cobra.Command, t *simulation.Table, theme config.ChartConfig, output string) error {
	charts, err := visualization.Charts(t, theme)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	data, err := json.MarshalIndent(map[string]any{
		"params": t.Params,
		"charts": charts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	data = append(data, '\n')

	if output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write Vega-Lite file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Charts written to %s\n", output)
	return nil
}

func writeText(cmd *cobra.Command, t *simulation.Table) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n\n", t.Params)
	if err := visualization.RenderScatterText(out, t, scatterCols, scatterRows); err != nil {
		return err
	}
	for _, col := range simulation.GroupingColumns() {
		view, err := simulation.QuartileAverages(t, col)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		if err := visualization.RenderQuartilesText(out, view); err != nil {
			return err
		}
	}
	return nil
}

// writeStaticHTML renders the charts to a self-contained HTML file.
func writeStaticHTML(cmd *cobra.Command, t *simulation.Table, theme config.ChartConfig, output string, noOpen bool) error {
	htmlBytes, err := visualization.RenderHTML(t, theme)
	if err != nil {
		return fmt.Errorf("render HTML: %w", err)
	}

	outPath := output
	if outPath == "" {
		outPath = filepath.Join(os.TempDir(), "dksim-charts.html")
	}

	if err := os.WriteFile(outPath, htmlBytes, 0644); err != nil {
		return fmt.Errorf("write HTML file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Charts written to %s\n", outPath)

	if !noOpen {
		if err := visualization.OpenBrowser(outPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
		}
	}
	return nil
}

// runChartServer starts the interactive server with p as the initial
// parameters and blocks until Ctrl-C.
func runChartServer(cmd *cobra.Command, a *app, p simulation.Params, noOpen bool) error {
	cfg := *a.cfg
	cfg.Simulation = config.SimulationConfig{
		Participants: p.Participants,
		Correlation:  p.Correlation,
		Seed:         p.Seed,
	}
	srv := visualization.NewServer(&cfg,
		visualization.WithLogger(a.logger),
		visualization.WithRunLog(a.runLog),
	)

	srvCtx, srvCancel := context.WithCancel(cmd.Context())
	defer srvCancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer stopSignals(sigCh)

	go func() {
		select {
		case <-sigCh:
			srvCancel()
		case <-srvCtx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Addr() != "" {
			break
		}
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	addr := srv.Addr()
	if addr == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + addr
	fmt.Fprintf(cmd.OutOrStdout(), "Chart server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	// Block until server exits
	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
