package visualization

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/simulation"
)

// templates contains the embedded HTML templates.
//
//go:embed templates/*
var templates embed.FS

// PageTitle is the heading of the HTML report.
const PageTitle = "Monte Carlo simulation of the Dunning-Kruger experiment"

// reportTemplate is parsed once; the template is embedded so parsing can
// only fail if the binary itself is broken.
var reportTemplate = template.Must(template.ParseFS(templates, "templates/report.html.tmpl"))

// htmlTemplateData holds data passed to the HTML template.
// ChartsJSON is pre-sanitized JSON (via json.HTMLEscape) safe for inline <script>.
type htmlTemplateData struct {
	Title       string
	Params      simulation.Params
	Interactive bool
	Controls    config.ControlsConfig
	APIBaseURL  string
	ChartsJSON  template.JS
}

// RenderHTML produces a standalone HTML report with the three charts of t
// embedded.
func RenderHTML(t *simulation.Table, theme config.ChartConfig) ([]byte, error) {
	charts, err := Charts(t, theme)
	if err != nil {
		return nil, err
	}
	return renderPage(htmlTemplateData{
		Title:  PageTitle,
		Params: t.Params,
	}, charts)
}

// RenderHTMLForServer produces the interactive page: parameter controls in a
// sidebar, with charts refreshed from apiBaseURL whenever a control changes.
func RenderHTMLForServer(t *simulation.Table, cfg *config.Config, apiBaseURL string) ([]byte, error) {
	charts, err := Charts(t, cfg.Chart)
	if err != nil {
		return nil, err
	}
	return renderPage(htmlTemplateData{
		Title:       PageTitle,
		Params:      t.Params,
		Interactive: true,
		Controls:    cfg.Controls,
		APIBaseURL:  apiBaseURL,
	}, charts)
}

func renderPage(data htmlTemplateData, charts []Chart) ([]byte, error) {
	chartsJSON, err := json.Marshal(charts)
	if err != nil {
		return nil, fmt.Errorf("marshal charts: %w", err)
	}

	// json.HTMLEscape converts <, >, & to unicode escapes, preventing
	// </script> breakout from the inlined specs.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, chartsJSON)
	data.ChartsJSON = template.JS(escaped.String()) // #nosec G203

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}
