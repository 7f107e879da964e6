package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Keys lists every dotted key accepted by Get and Set, in display order.
func Keys() []string {
	return []string{
		"simulation.participants",
		"simulation.correlation",
		"simulation.seed",
		"controls.participants_min",
		"controls.participants_max",
		"controls.participants_step",
		"controls.correlation_min",
		"controls.correlation_max",
		"controls.correlation_step",
		"server.addr",
		"server.allowed_origins",
		"server.rate_limit",
		"server.rate_burst",
		"server.shutdown_timeout",
		"server.trust_proxy",
		"chart.width",
		"chart.height",
		"chart.grid",
		"chart.view_stroke",
		"chart.text_color",
		"chart.label_font_size",
		"chart.title_font_size",
		"chart.title_font_weight",
		"logging.level",
	}
}

// Get retrieves a configuration value by dot-notation key.
func (c *Config) Get(key string) (any, bool) {
	switch key {
	case "simulation.participants":
		return c.Simulation.Participants, true
	case "simulation.correlation":
		return c.Simulation.Correlation, true
	case "simulation.seed":
		return c.Simulation.Seed, true
	case "controls.participants_min":
		return c.Controls.ParticipantsMin, true
	case "controls.participants_max":
		return c.Controls.ParticipantsMax, true
	case "controls.participants_step":
		return c.Controls.ParticipantsStep, true
	case "controls.correlation_min":
		return c.Controls.CorrelationMin, true
	case "controls.correlation_max":
		return c.Controls.CorrelationMax, true
	case "controls.correlation_step":
		return c.Controls.CorrelationStep, true
	case "server.addr":
		return c.Server.Addr, true
	case "server.allowed_origins":
		return strings.Join(c.Server.AllowedOrigins, ","), true
	case "server.rate_limit":
		return c.Server.RateLimit, true
	case "server.rate_burst":
		return c.Server.RateBurst, true
	case "server.shutdown_timeout":
		return c.Server.ShutdownTimeout.String(), true
	case "server.trust_proxy":
		return c.Server.TrustProxy, true
	case "chart.width":
		return c.Chart.Width, true
	case "chart.height":
		return c.Chart.Height, true
	case "chart.grid":
		return c.Chart.Grid, true
	case "chart.view_stroke":
		return c.Chart.ViewStroke, true
	case "chart.text_color":
		return c.Chart.TextColor, true
	case "chart.label_font_size":
		return c.Chart.LabelFontSize, true
	case "chart.title_font_size":
		return c.Chart.TitleFontSize, true
	case "chart.title_font_weight":
		return c.Chart.TitleFontWeight, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set updates a configuration value by dot-notation key and re-validates
// the result. On error the config is left unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	next.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)

	var err error
	switch key {
	case "simulation.participants":
		next.Simulation.Participants, err = parseInt(value)
	case "simulation.correlation":
		next.Simulation.Correlation, err = parseFloat(value)
	case "simulation.seed":
		next.Simulation.Seed, err = strconv.ParseInt(value, 10, 64)
	case "controls.participants_min":
		next.Controls.ParticipantsMin, err = parseInt(value)
	case "controls.participants_max":
		next.Controls.ParticipantsMax, err = parseInt(value)
	case "controls.participants_step":
		next.Controls.ParticipantsStep, err = parseInt(value)
	case "controls.correlation_min":
		next.Controls.CorrelationMin, err = parseFloat(value)
	case "controls.correlation_max":
		next.Controls.CorrelationMax, err = parseFloat(value)
	case "controls.correlation_step":
		next.Controls.CorrelationStep, err = parseFloat(value)
	case "server.addr":
		next.Server.Addr = value
	case "server.allowed_origins":
		next.Server.AllowedOrigins = splitList(value)
	case "server.rate_limit":
		next.Server.RateLimit, err = parseFloat(value)
	case "server.rate_burst":
		next.Server.RateBurst, err = parseInt(value)
	case "server.shutdown_timeout":
		next.Server.ShutdownTimeout, err = time.ParseDuration(value)
	case "server.trust_proxy":
		next.Server.TrustProxy, err = strconv.ParseBool(value)
	case "chart.width":
		next.Chart.Width, err = parseInt(value)
	case "chart.height":
		next.Chart.Height, err = parseInt(value)
	case "chart.grid":
		next.Chart.Grid, err = strconv.ParseBool(value)
	case "chart.view_stroke":
		next.Chart.ViewStroke, err = strconv.ParseBool(value)
	case "chart.text_color":
		next.Chart.TextColor = value
	case "chart.label_font_size":
		next.Chart.LabelFontSize, err = parseInt(value)
	case "chart.title_font_size":
		next.Chart.TitleFontSize, err = parseInt(value)
	case "chart.title_font_weight":
		next.Chart.TitleFontWeight = value
	case "logging.level":
		next.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
