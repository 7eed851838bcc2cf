// Package server exposes the dashboard, insight, directory and
// import endpoints over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/wesm/teampulse/internal/config"
	"github.com/wesm/teampulse/internal/dashboard"
	"github.com/wesm/teampulse/internal/db"
	"github.com/wesm/teampulse/internal/ingest"
	"github.com/wesm/teampulse/internal/insight"
	"github.com/wesm/teampulse/internal/slackdir"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP API server.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	db      *db.DB
	engine  *ingest.Engine
	dash    *dashboard.Service
	dir     *slackdir.Directory
	events  *broker
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo

	generateFunc insight.GenerateFunc
	now          func() time.Time

	// handlerDelay is injected before each timeout-wrapped
	// handler so tests can exceed a short timeout. Zero in
	// production.
	handlerDelay time.Duration
}

// New creates a Server. The engine may be nil when imports are
// disabled.
func New(
	cfg config.Config, database *db.DB, engine *ingest.Engine,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:          cfg,
		db:           database,
		engine:       engine,
		events:       newBroker(),
		mux:          http.NewServeMux(),
		generateFunc: insight.RunAgent,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	command, err := insight.ParseCommand(cfg.InsightAgent)
	if err != nil {
		log.Printf("insight agent disabled: %v", err)
		command = nil
	}
	s.dash = dashboard.New(database, dashboard.Options{
		DefaultTeam:  cfg.DefaultTeam,
		Teams:        cfg.Teams,
		AgentCommand: command,
		RunAgent:     s.generateFunc,
		PanelTimeout: cfg.PanelTimeout,
		Now:          s.now,
	})
	if engine != nil {
		engine.OnImport(func(st ingest.Stats) {
			s.events.publish("data_updated", st)
		})
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithGenerateFunc overrides the agent runner, allowing tests to
// substitute a stub. Nil is ignored.
func WithGenerateFunc(f insight.GenerateFunc) Option {
	return func(s *Server) {
		if f != nil {
			s.generateFunc = f
		}
	}
}

// WithDirectory enables Slack directory sync.
func WithDirectory(d *slackdir.Directory) Option {
	return func(s *Server) { s.dir = d }
}

// WithClock overrides the clock used to resolve time ranges.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/v1/health", s.withTimeout(s.handleHealth))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
	s.mux.Handle("GET /api/v1/stats", s.withTimeout(s.handleGetStats))

	s.mux.Handle("GET /api/v1/dashboard/trend", s.withTimeout(s.handleTrend))
	s.mux.Handle("GET /api/v1/dashboard/channels", s.withTimeout(s.handleChannels))
	s.mux.Handle("GET /api/v1/dashboard/kpi", s.withTimeout(s.handleKPI))
	s.mux.Handle("GET /api/v1/dashboard/overview", s.withTimeout(s.handleOverview))
	s.mux.Handle("GET /api/v1/dashboard/heatmap", s.withTimeout(s.handleHeatmap))
	s.mux.Handle("GET /api/v1/dashboard/burnout-series", s.withTimeout(s.handleBurnout))

	s.mux.Handle("GET /api/v1/metrics/entity-totals", s.withTimeout(s.handleEntityTotals))
	s.mux.Handle("GET /api/v1/metrics/top-emojis", s.withTimeout(s.handleTopEmojis))

	s.mux.Handle("GET /api/v1/insights/teams", s.withTimeout(s.handleListInsights))
	// Agent runs can take minutes; no write timeout.
	s.mux.HandleFunc("POST /api/v1/insights/generate", s.handleGenerateInsights)
	s.mux.Handle("POST /api/v1/insights/{id}/dismiss", s.withTimeout(s.handleDismissInsight))
	s.mux.Handle("DELETE /api/v1/insights/{id}/dismiss", s.withTimeout(s.handleRestoreInsight))

	s.mux.Handle("GET /api/v1/slack/channels", s.withTimeout(s.handleListChannels))
	s.mux.Handle("GET /api/v1/slack/users", s.withTimeout(s.handleListUsers))
	s.mux.Handle("GET /api/v1/slack/selection", s.withTimeout(s.handleGetSelection))
	s.mux.Handle("PUT /api/v1/slack/selection", s.withTimeout(s.handleSetSelection))
	s.mux.Handle("POST /api/v1/slack/sync", s.withTimeout(s.handleSyncDirectory))

	// Import streams progress; SSE must not be buffered by the
	// timeout handler.
	s.mux.HandleFunc("POST /api/v1/import", s.handleTriggerImport)
	s.mux.Handle("GET /api/v1/import/status", s.withTimeout(s.handleImportStatus))
	s.mux.HandleFunc("GET /api/v1/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown closes event streams and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.close()
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}
