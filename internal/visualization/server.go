package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nvandessel/dksim/internal/config"
	"github.com/nvandessel/dksim/internal/logging"
	"github.com/nvandessel/dksim/internal/ratelimit"
	"github.com/nvandessel/dksim/internal/simulation"
)

// pruneInterval is how often idle rate limit buckets are dropped.
const pruneInterval = time.Minute

// Server serves the interactive chart page and the simulation API.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	runLog     *logging.RunLog
	limiter    *ratelimit.Limiter
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithRunLog records every API simulation in the run log.
func WithRunLog(rl *logging.RunLog) ServerOption {
	return func(s *Server) { s.runLog = rl }
}

// NewServer creates a chart server. A zero rate limit in cfg disables
// rate limiting.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logging.Discard(),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the router. ListenAndServe uses it; tests can drive it
// through httptest directly.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.logRequests, middleware.Recoverer)

	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleIndex)
	r.Route("/api", func(api chi.Router) {
		api.Use(s.rateLimit)
		api.Get("/simulate", s.handleSimulate)
		api.Get("/quartiles", s.handleQuartiles)
		api.Get("/charts", s.handleCharts)
		api.Get("/summary", s.handleSummary)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	return r
}

// ListenAndServe starts the HTTP server on the configured address and blocks
// until the context is cancelled. Returns nil on clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Debug("chart server listening", "addr", s.addr)

	// Graceful shutdown when context is cancelled.
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.limiter.Prune(); n > 0 {
					s.logger.Log(ctx, logging.LevelTrace, "pruned rate limit buckets", "count", n)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
					s.logger.Warn("chart server shutdown", "error", err)
				}
				return
			}
		}
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleIndex serves the interactive page for the configured default
// parameters.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	t, err := s.simulate(r, s.cfg.Simulation.Params())
	if err != nil {
		writeSimulationError(w, err)
		return
	}

	apiBaseURL := "http://" + s.Addr()
	if s.Addr() == "" {
		apiBaseURL = "http://" + r.Host
	}
	html, err := RenderHTMLForServer(t, s.cfg, apiBaseURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render error: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	t, err := s.simulateQuery(r)
	if err != nil {
		writeSimulationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleQuartiles returns one view for ?by=<column>, or both when by is
// absent.
func (s *Server) handleQuartiles(w http.ResponseWriter, r *http.Request) {
	columns := simulation.GroupingColumns()
	if by := r.URL.Query().Get("by"); by != "" {
		columns = []string{by}
	}

	t, err := s.simulateQuery(r)
	if err != nil {
		writeSimulationError(w, err)
		return
	}

	views := make([]*simulation.QuartileAverageView, 0, len(columns))
	for _, col := range columns {
		view, err := simulation.QuartileAverages(t, col)
		if err != nil {
			writeSimulationError(w, err)
			return
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"params": t.Params,
		"views":  views,
	})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	t, err := s.simulateQuery(r)
	if err != nil {
		writeSimulationError(w, err)
		return
	}

	charts, err := Charts(t, s.cfg.Chart)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"params": t.Params,
		"charts": charts,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	t, err := s.simulateQuery(r)
	if err != nil {
		writeSimulationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, simulation.Summarize(t))
}

// simulateQuery runs a simulation with parameters from the query string,
// falling back to the configured defaults for absent ones.
func (s *Server) simulateQuery(r *http.Request) (*simulation.Table, error) {
	p, err := ParseParams(r.URL.Query().Get, s.cfg.Simulation.Params())
	if err != nil {
		return nil, err
	}
	return s.simulate(r, p)
}

func (s *Server) simulate(r *http.Request, p simulation.Params) (*simulation.Table, error) {
	start := time.Now()
	t, err := simulation.Generate(p)

	entry := logging.RunEntry{
		RunID:    middleware.GetReqID(r.Context()),
		Source:   "http",
		Params:   p,
		Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.PercentileCorrelation = simulation.Summarize(t).PercentileCorrelation
	}
	s.runLog.Record(entry)

	return t, err
}

// ParseParams reads participants, correlation and seed through get (for
// example url.Values.Get), keeping defaults for empty values. The result is
// validated.
func ParseParams(get func(string) string, defaults simulation.Params) (simulation.Params, error) {
	p := defaults
	if v := get("participants"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: participants must be an integer, got %q", simulation.ErrInvalidArgument, v)
		}
		p.Participants = n
	}
	if v := get("correlation"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: correlation must be a number, got %q", simulation.ErrInvalidArgument, v)
		}
		p.Correlation = c
	}
	if v := get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: seed must be an integer, got %q", simulation.ErrInvalidArgument, v)
		}
		p.Seed = seed
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// rateLimit rejects clients that exceed the configured request rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, ratelimit.ErrLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

// clientKey identifies a client by IP. Forwarding headers only count when
// server.trust_proxy is set, in which case RealIP has already applied them.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeSimulationError(w http.ResponseWriter, err error) {
	if errors.Is(err, simulation.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
