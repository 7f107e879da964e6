// Package mcp provides an MCP (Model Context Protocol) server for dksim.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/logging"
	"github.com/nvandessel/dksim/internal/pathutil"
	"github.com/nvandessel/dksim/internal/ratelimit"
)

// Server wraps the MCP SDK server and exposes the simulation as tools.
type Server struct {
	server       *sdk.Server
	cfg          *config.Config
	logger       *slog.Logger
	runLog       *logging.RunLog
	toolLimiters ratelimit.ToolLimiters
	exportDirs   []string
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "dksim")
	Version string // Server version

	// Settings supplies default parameters and the chart theme.
	// Nil means config.Default().
	Settings *config.Config

	Logger *slog.Logger
	RunLog *logging.RunLog

	// ExportDirs are the directories dksim_export may write to. Relative
	// paths land in the first one. Empty means ~/.dksim/exports.
	ExportDirs []string
}

// NewServer creates a new MCP server with dksim tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	exportDirs := cfg.ExportDirs
	if len(exportDirs) == 0 {
		dir, err := pathutil.DefaultExportDir()
		if err != nil {
			return nil, err
		}
		exportDirs = []string{dir}
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		cfg:          settings,
		logger:       logger,
		runLog:       cfg.RunLog,
		toolLimiters: ratelimit.NewToolLimiters(),
		exportDirs:   exportDirs,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := s.watchSignals(ctx, cancel, make(chan os.Signal, 1))
	defer stop()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// watchSignals cancels ctx when SIGINT or SIGTERM arrives on ch. The
// returned func unregisters ch and waits for the watcher to exit.
func (s *Server) watchSignals(ctx context.Context, cancel context.CancelFunc, ch chan os.Signal) (stop func()) {
	notifySignals(ch)

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ch:
			s.logger.Debug("mcp server received signal, shutting down")
			cancel()
		case <-ctx.Done():
		case <-done:
		}
	}()

	return func() {
		stopSignals(ch)
		close(done)
		<-exited
	}
}
