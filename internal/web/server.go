// Package web provides the HTTP API for the dataset service.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/ledgerview/internal/config"
	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/JonMunkholm/ledgerview/internal/metrics"
	"github.com/JonMunkholm/ledgerview/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ServiceName and ServiceVersion identify the API in GET / and /health.
const (
	ServiceName    = "ledgerview"
	ServiceVersion = "1.0.0"
)

// Server is the HTTP server for the dataset API.
type Server struct {
	service *core.Service
	metrics *metrics.Registry
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *middleware.RateLimiter
}

// NewServer creates a Server. reg may be nil, which disables /metrics.
func NewServer(service *core.Service, reg *metrics.Registry, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		metrics: reg,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.cfg.Security.AllowedOrigins,
	}))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(s.cfg.Rate.RPS, s.cfg.Rate.Burst)
		s.limiter.OnLimit = func(w http.ResponseWriter, r *http.Request) {
			s.respondStatus(w, r, errRateLimited, http.StatusTooManyRequests)
		}
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes. Uploads and exports run under
// their own deadlines, so only the quick read routes get the request timeout.
func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondStatus(w, r, errRouteNotFound, http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.respondStatus(w, r, errMethodNotAllowed, http.StatusMethodNotAllowed)
	})

	s.router.Get("/", s.handleInfo)
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Delete("/upload", s.handleClear)
		r.Get("/export", s.handleExport)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			r.Use(chimw.Compress(5))

			r.Get("/columns", s.handleListColumns)
			r.Get("/columns/{name}", s.handleColumnDetail)
			r.Get("/data", s.handleQueryData)
			r.Get("/data/stats", s.handleStats)
			r.Get("/export/preview", s.handleExportPreview)
		})
	})

	s.router.With(chimw.Timeout(s.cfg.Server.RequestTimeout)).Get("/overview", s.handleOverview)
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// RunBackground starts housekeeping tied to the server until ctx ends.
func (s *Server) RunBackground(ctx context.Context) {
	if s.limiter != nil {
		go s.limiter.RunSweeper(ctx)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// The overview page uses inline styles only
		if s.cfg.Security.EnableCSP {
			h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
		}

		next.ServeHTTP(w, r)
	})
}
