package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/logging"
	"github.com/nvandessel/dksim/internal/simulation"
	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dksim",
		Short: "Dunning-Kruger effect simulator",
		Long: `dksim simulates the Dunning-Kruger experiment.

It draws synthetic participants whose test score and perceived ability are
correlated, converts both to percentiles and quartiles, and shows how the
quartile averages produce the familiar Dunning-Kruger chart.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.dksim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newQuartilesCmd(),
		newSummaryCmd(),
		newChartCmd(),
		newRunsCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

// app bundles what a command needs after reading the global flags.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	runLog *logging.RunLog
}

// loadApp reads the config and sets up logging. Callers must Close the
// result.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	}
	if dir, err := config.Dir(); err == nil {
		a.runLog = logging.NewRunLog(dir, cfg.Logging.Level)
	}
	return a, nil
}

// Close releases the run log.
func (a *app) Close() {
	a.runLog.Close()
}

// addSimulationFlags registers the parameter flags shared by every command
// that runs a simulation. Defaults come from the config at run time.
func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().Int("participants", simulation.DefaultParticipants, "Number of synthetic participants")
	cmd.Flags().Float64("correlation", simulation.DefaultCorrelation, "Correlation between test score and perceived ability (-1 to 1)")
	cmd.Flags().Int64("seed", simulation.DefaultSeed, "Random seed")
	cmd.Flags().Bool("random-seed", false, "Draw a fresh random seed and print it")
}

// resolveParams applies explicitly set flags on top of the configured
// defaults and validates the result.
func (a *app) resolveParams(cmd *cobra.Command) (simulation.Params, error) {
	p := a.cfg.Simulation.Params()
	flags := cmd.Flags()

	if flags.Changed("participants") {
		p.Participants, _ = flags.GetInt("participants")
	}
	if flags.Changed("correlation") {
		p.Correlation, _ = flags.GetFloat64("correlation")
	}
	if flags.Changed("seed") {
		p.Seed, _ = flags.GetInt64("seed")
	}
	if random, _ := flags.GetBool("random-seed"); random {
		if flags.Changed("seed") {
			return p, fmt.Errorf("%w: --seed and --random-seed are mutually exclusive", simulation.ErrInvalidArgument)
		}
		seed, err := simulation.RandomSeed()
		if err != nil {
			return p, err
		}
		p.Seed = seed
		fmt.Fprintf(cmd.ErrOrStderr(), "seed: %d\n", seed)
	}

	return p, p.Validate()
}

// generate resolves the parameters, runs the simulation and records the run.
func (a *app) generate(cmd *cobra.Command) (*simulation.Table, error) {
	p, err := a.resolveParams(cmd)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	t, err := simulation.Generate(p)
	entry := logging.RunEntry{
		Source:   "cli:" + cmd.Name(),
		Params:   p,
		Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.PercentileCorrelation = simulation.Summarize(t).PercentileCorrelation
	}
	runID := a.runLog.Record(entry)
	a.logger.Debug("simulation run", "run_id", runID, "params", p.String(), "duration", entry.Duration)

	if err != nil {
		return nil, err
	}
	a.logger.Log(cmd.Context(), logging.LevelTrace, "simulation records", "run_id", runID, "records", t.Records)
	return t, nil
}
