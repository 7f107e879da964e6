package mcp

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/simulation"
)

// setupTestServer creates a server with default settings and no run log.
func setupTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0"})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server
}

func TestNewServer(t *testing.T) {
	server := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.cfg == nil {
		t.Fatal("Server.cfg is nil")
	}
	if got := server.cfg.Simulation.Params(); got != simulation.DefaultParams() {
		t.Errorf("default params = %+v, want %+v", got, simulation.DefaultParams())
	}
	if len(server.toolLimiters) != 4 {
		t.Errorf("len(toolLimiters) = %d, want 4", len(server.toolLimiters))
	}
}

func TestNewServer_InvalidSettings(t *testing.T) {
	settings := config.Default()
	settings.Simulation.Participants = 0

	_, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Settings: settings})
	if err == nil {
		t.Fatal("expected error for invalid settings")
	}
}

// connect wires a client to the server over in-memory transports.
func connect(t *testing.T, server *Server) *sdk.ClientSession {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestServer_ListTools(t *testing.T) {
	session := connect(t, setupTestServer(t))

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"dksim_generate", "dksim_quartiles", "dksim_chart", "dksim_export"} {
		if !names[want] {
			t.Errorf("tool %q not registered", want)
		}
	}
}

func TestServer_CallGenerate(t *testing.T) {
	session := connect(t, setupTestServer(t))

	res, err := session.CallTool(context.Background(), &sdk.CallToolParams{
		Name:      "dksim_generate",
		Arguments: map[string]any{"participants": 8, "correlation": 1.0, "seed": 3},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("CallTool returned tool error: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("CallTool returned no content")
	}
	text, ok := res.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want *TextContent", res.Content[0])
	}

	var out DksimGenerateOutput
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(out.Records) != 8 {
		t.Fatalf("len(Records) = %d, want 8", len(out.Records))
	}
	for i, r := range out.Records {
		if r.TestScorePercentile != r.PerceivedAbilityPercentile {
			t.Errorf("record %d: percentiles differ at correlation 1: %+v", i, r)
		}
	}
}

func TestServer_ReadDefaultsResource(t *testing.T) {
	session := connect(t, setupTestServer(t))

	res, err := session.ReadResource(context.Background(), &sdk.ReadResourceParams{URI: DefaultsResourceURI})
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("len(Contents) = %d, want 1", len(res.Contents))
	}

	var body struct {
		Defaults        simulation.Params `json:"defaults"`
		GroupingColumns []string          `json:"grouping_columns"`
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &body); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if body.Defaults != simulation.DefaultParams() {
		t.Errorf("defaults = %+v, want %+v", body.Defaults, simulation.DefaultParams())
	}
	if len(body.GroupingColumns) != 2 {
		t.Errorf("grouping_columns = %v, want 2 entries", body.GroupingColumns)
	}
}

func TestWatchSignals_CancelsOnSignal(t *testing.T) {
	server := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan os.Signal, 1)
	stop := server.watchSignals(ctx, cancel, ch)
	defer stop()

	ch <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled after a signal")
	}
}

func TestWatchSignals_StopReleasesWatcher(t *testing.T) {
	server := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan os.Signal, 1)
	stop := server.watchSignals(ctx, cancel, ch)
	stop()

	// The watcher has exited, so a late signal is left unread.
	ch <- os.Interrupt
	if ctx.Err() != nil {
		t.Fatalf("context cancelled after stop: %v", ctx.Err())
	}
	if len(ch) != 1 {
		t.Errorf("len(ch) = %d, want the signal left unread", len(ch))
	}
}
