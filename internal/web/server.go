// Package web provides the HTTP API and HTMX fragments for CRM imports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/jobs"
	"github.com/JonMunkholm/CRM/internal/service"
	crmmw "github.com/JonMunkholm/CRM/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Enqueuer schedules background imports. jobs.Client satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, p jobs.ImportPayload) (string, error)
}

// Server is the HTTP server for the CRM import API.
type Server struct {
	service *service.Service
	queue   Enqueuer
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	stop context.CancelFunc
	bg   context.Context
}

// NewServer creates a Server. queue may be nil, in which case the async
// import endpoint answers 503.
func NewServer(svc *service.Service, cfg *config.Config, queue Enqueuer) *Server {
	bg, stop := context.WithCancel(context.Background())
	s := &Server{
		service: svc,
		queue:   queue,
		cfg:     cfg,
		router:  chi.NewRouter(),
		bg:      bg,
		stop:    stop,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(crmmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(crmmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled && s.cfg.Rate.RequestsPerMinute > 0 {
		s.router.Use(s.rateLimiter(s.cfg.Rate.RequestsPerMinute))
	}
}

func (s *Server) rateLimiter(perMinute int) func(http.Handler) http.Handler {
	rl := crmmw.NewRateLimiter(perMinute, time.Minute)
	go rl.Cleanup(s.bg)
	return rl.Handler
}

// importLimiter is the stricter limit shared by the endpoints that commit.
func (s *Server) importLimiter() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled || s.cfg.Rate.ImportLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimiter(s.cfg.Rate.ImportLimit)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	commitLimit := s.importLimiter()

	s.router.Route("/api", func(r chi.Router) {
		r.Use(crmmw.APIKeyAuth(s.cfg.Security))

		// Entities and stored records
		r.Get("/entities", s.handleListEntities)
		r.Get("/entities/{entity}", s.handleGetSchema)
		r.Get("/entities/{entity}/template", s.handleDownloadTemplate)
		r.Get("/entities/{entity}/records", s.handleListRecords)
		r.Post("/entities/{entity}/records", s.handleSaveRecord)
		r.Get("/entities/{entity}/records/{id}", s.handleGetRecord)
		r.Delete("/entities/{entity}/records/{id}", s.handleDeleteRecord)

		// Import sessions
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleCloseSession)
		r.Post("/sessions/{id}/source", s.handleLoadSession)
		r.Put("/sessions/{id}/format", s.handleSetSessionFormat)
		r.With(commitLimit).Post("/sessions/{id}/submit", s.handleSubmitSession)
		r.Post("/sessions/{id}/reset", s.handleResetSession)

		// One-shot imports
		r.With(commitLimit).Post("/import/{entity}", s.handleImport)
		r.Post("/import/{entity}/preview", s.handlePreview)
		r.With(commitLimit).Post("/import/{entity}/async", s.handleImportAsync)

		// Import history
		r.Get("/imports/{entity}/history", s.handleImportHistory)
		r.Get("/imports/{entity}/{importID}", s.handleImportSummary)
		r.Get("/imports/{entity}/{importID}/report.xlsx", s.handleRejectionReport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imports":  s.service.LimiterStatus(),
		"sessions": s.service.SessionCount(),
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}
