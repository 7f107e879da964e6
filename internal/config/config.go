// Package config provides unified configuration loading for dksim.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/nvandessel/dksim/internal/simulation"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable dksim reads.
const EnvPrefix = "DKSIM_"

// Config contains all dksim configuration settings.
type Config struct {
	// Simulation holds the parameters used when a command or request
	// does not set them.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Controls describes the ranges offered by the interactive page.
	Controls ControlsConfig `json:"controls" yaml:"controls"`

	// Server configures the interactive chart server.
	Server ServerConfig `json:"server" yaml:"server"`

	// Chart configures the chart theme.
	Chart ChartConfig `json:"chart" yaml:"chart"`

	// Logging contains settings for operational and run logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig holds default simulation parameters.
type SimulationConfig struct {
	Participants int     `json:"participants" yaml:"participants" env:"PARTICIPANTS"`
	Correlation  float64 `json:"correlation" yaml:"correlation" env:"CORRELATION"`
	Seed         int64   `json:"seed" yaml:"seed" env:"SEED"`
}

// Params converts the defaults into simulation parameters.
func (c SimulationConfig) Params() simulation.Params {
	return simulation.Params{
		Correlation:  c.Correlation,
		Participants: c.Participants,
		Seed:         c.Seed,
	}
}

// ControlsConfig bounds the sliders of the interactive page. These are
// presentation limits only; the CLI and API accept any valid parameters.
type ControlsConfig struct {
	ParticipantsMin  int     `json:"participants_min" yaml:"participants_min"`
	ParticipantsMax  int     `json:"participants_max" yaml:"participants_max"`
	ParticipantsStep int     `json:"participants_step" yaml:"participants_step"`
	CorrelationMin   float64 `json:"correlation_min" yaml:"correlation_min"`
	CorrelationMax   float64 `json:"correlation_max" yaml:"correlation_max"`
	CorrelationStep  float64 `json:"correlation_step" yaml:"correlation_step"`
}

// ServerConfig configures the chart server.
type ServerConfig struct {
	// Addr is the listen address. Port 0 lets the OS pick a free port.
	Addr string `json:"addr" yaml:"addr" env:"SERVER_ADDR"`

	// AllowedOrigins enables CORS for the API when non-empty.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" env:"ALLOWED_ORIGINS"`

	// RateLimit is the sustained number of API requests per second allowed
	// per client. Zero disables rate limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`

	// RateBurst is the number of requests a client may make at once.
	RateBurst int `json:"rate_burst" yaml:"rate_burst" env:"RATE_BURST"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a reverse proxy that sets those headers;
	// otherwise clients can pick their own rate limit key.
	TrustProxy bool `json:"trust_proxy" yaml:"trust_proxy" env:"TRUST_PROXY"`
}

// ChartConfig is the chart theme.
type ChartConfig struct {
	Width           int    `json:"width" yaml:"width"`
	Height          int    `json:"height" yaml:"height"`
	Grid            bool   `json:"grid" yaml:"grid"`
	ViewStroke      bool   `json:"view_stroke" yaml:"view_stroke"`
	TextColor       string `json:"text_color" yaml:"text_color"`
	LabelFontSize   int    `json:"label_font_size" yaml:"label_font_size"`
	TitleFontSize   int    `json:"title_font_size" yaml:"title_font_size"`
	TitleFontWeight string `json:"title_font_weight" yaml:"title_font_weight"`
}

// LoggingConfig configures dksim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables run logging to ~/.dksim/runs.jsonl.
	Level string `json:"level" yaml:"level" env:"LOG_LEVEL"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Participants: simulation.DefaultParticipants,
			Correlation:  simulation.DefaultCorrelation,
			Seed:         simulation.DefaultSeed,
		},
		Controls: ControlsConfig{
			ParticipantsMin:  50,
			ParticipantsMax:  150,
			ParticipantsStep: 10,
			CorrelationMin:   0,
			CorrelationMax:   1,
			CorrelationStep:  0.1,
		},
		Server: ServerConfig{
			Addr:            "localhost:0",
			RateLimit:       10,
			RateBurst:       20,
			ShutdownTimeout: 5 * time.Second,
		},
		Chart: ChartConfig{
			Width:           480,
			Height:          320,
			Grid:            false,
			ViewStroke:      false,
			TextColor:       "#7F7F7F",
			LabelFontSize:   14,
			TitleFontSize:   16,
			TitleFontWeight: "normal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the dksim home directory (~/.dksim).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dksim"), nil
}

// DefaultPath returns ~/.dksim/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from path and environment variables.
// Order: defaults -> config file -> environment variables.
// An empty path means ~/.dksim/config.yaml, which may be absent.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			fileCfg, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			cfg = fileCfg
		case explicit || !errors.Is(statErr, os.ErrNotExist):
			return nil, fmt.Errorf("loading config file: %w", statErr)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Keys missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Simulation.Params().Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	ctl := c.Controls
	if ctl.ParticipantsMin < 1 || ctl.ParticipantsMax < ctl.ParticipantsMin || ctl.ParticipantsStep < 1 {
		return fmt.Errorf("invalid participants control: min=%d max=%d step=%d", ctl.ParticipantsMin, ctl.ParticipantsMax, ctl.ParticipantsStep)
	}
	if ctl.CorrelationMin < -1 || ctl.CorrelationMax > 1 || ctl.CorrelationMax < ctl.CorrelationMin || ctl.CorrelationStep <= 0 {
		return fmt.Errorf("invalid correlation control: min=%g max=%g step=%g", ctl.CorrelationMin, ctl.CorrelationMax, ctl.CorrelationStep)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative, got %g", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate limiting is enabled, got %d", c.Server.RateBurst)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be non-negative, got %v", c.Server.ShutdownTimeout)
	}

	if c.Chart.Width < 1 || c.Chart.Height < 1 {
		return fmt.Errorf("chart size must be positive, got %dx%d", c.Chart.Width, c.Chart.Height)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies DKSIM_* environment variables to the config.
// Unset variables leave the current values alone.
func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
