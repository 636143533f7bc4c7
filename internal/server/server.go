// Package server provides the HTTP server for mudra.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/analysis"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration. Every dependency is optional;
// routes that need a missing one are not registered.
type Config struct {
	StaticDir string
	App       *app.App
	Store     *store.Store
	Analysis  *analysis.Session
	// StreamFPS caps the MJPEG stream rate. Zero means 15.
	StreamFPS int
	Logger    *zap.Logger
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	start   time.Time
	logger  *zap.Logger
	state   *StateHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	s.handler = logRequests(logger, s.mux)
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		canvas := api.NewCanvasHandler(a, s.config.Store)
		s.mux.HandleFunc("/api/snapshot", canvas.Snapshot)
		s.mux.HandleFunc("/api/clear", canvas.Clear)
		s.mux.HandleFunc("/api/style", canvas.Style)
		if s.config.Store != nil {
			a.OnFrame(canvas.Observe)
		}
		s.mux.Handle("/api/settings", api.NewSettingsHandler(a, s.config.Store))

		s.mux.Handle("/api/stream", NewStreamHandler(a, s.config.StreamFPS))

		s.state = NewStateHandler(s.logger)
		a.OnFrame(s.state.Broadcast)
		s.mux.Handle("/api/state", s.state)

		if s.config.Store != nil {
			drawings := api.NewDrawingHandler(s.config.Store, a)
			s.mux.Handle("/api/drawings", drawings)
			s.mux.Handle("/api/drawings/", drawings)
		}

		if s.config.Analysis != nil {
			analyses := api.NewAnalysisHandler(a, s.config.Analysis, s.config.Store)
			s.mux.HandleFunc("/api/analyze", analyses.Analyze)
			if s.config.Store != nil {
				s.mux.HandleFunc("/api/analyses", analyses.History)
			}
		}
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.App != nil {
		response["running"] = s.config.App.Running()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close disconnects WebSocket clients.
func (s *Server) Close() {
	if s.state != nil {
		s.state.Close()
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s)
}
