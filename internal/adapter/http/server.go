package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/adapter/tabular"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/dashboard"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// DefaultMaxBodyBytes caps import and publish request bodies.
const DefaultMaxBodyBytes = 10 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Dashboard is the state the dashboard routes operate on.
type Dashboard interface {
	Load(r io.Reader, format tabular.Format) (dashboard.ImportSummary, error)
	ToggleFeeder(feeder string) bool
	ToggleStation(id string) (bool, error)
	Aggregate() domain.Aggregation
	View(q domain.Query) domain.Page
	Export(w io.Writer) error
	Publish(ctx context.Context) (domain.Snapshot, error)
	Remote(ctx context.Context) (domain.Snapshot, error)
}

// SnapshotService backs the /api/snapshot store routes.
type SnapshotService interface {
	Fetch(ctx context.Context) (domain.Snapshot, error)
	Publish(ctx context.Context, in domain.SnapshotInput) (domain.Snapshot, error)
}

// Options configures the server.
type Options struct {
	Addr           string
	ReadOnly       bool
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Server exposes the dashboard API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	dashboard  Dashboard
	snapshots  SnapshotService
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the dashboard, snapshot, /healthz,
// /readyz, and /metrics routes.
func NewServer(opts Options, dash Dashboard, snapshots SnapshotService, ready ReadinessChecker, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	mux := http.NewServeMux()

	s := &Server{
		dashboard: dash,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/stations/export", s.handleExport)
	mux.HandleFunc("GET /api/dashboard/remote", s.handleRemote)
	mux.HandleFunc("POST /api/stations/import", s.mutating(s.handleImport))
	mux.HandleFunc("POST /api/feeders/{feeder}/toggle", s.mutating(s.handleToggleFeeder))
	mux.HandleFunc("POST /api/stations/{id}/toggle", s.mutating(s.handleToggleStation))
	mux.HandleFunc("POST /api/dashboard/publish", s.mutating(s.handlePublish))

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshotRead)
	mux.HandleFunc("POST /api/snapshot", s.handleSnapshotPublish)

	handler := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         600,
	}).Handler(mux)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "read_only", s.opts.ReadOnly)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// mutating rejects the request when the server runs in viewer mode.
func (s *Server) mutating(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.ReadOnly {
			writeError(w, http.StatusForbidden, "dashboard is read-only")
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
