// Package server exposes the run trigger and run history over HTTP. The
// query/CRUD surface of the product lives elsewhere; this server only
// fronts the scraping pipeline.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/adjudex/adjudex"
	"github.com/adjudex/adjudex/pkg/auctions"
	"github.com/adjudex/adjudex/pkg/logging"
)

// Runner is the part of the pipeline the HTTP surface needs.
type Runner interface {
	Run(ctx context.Context, opts ...adjudex.RunOption) (*auctions.RunSummary, error)
	History(ctx context.Context, limit int) ([]auctions.RunRecord, error)
	Sources() []string
}

// Config carries the HTTP server settings.
type Config struct {
	Addr            string        // listen address, e.g. ":8080"
	AllowedOrigins  []string      // CORS origins; empty allows all
	ShutdownTimeout time.Duration // graceful shutdown budget
}

// Server serves the scraping API.
type Server struct {
	http   *http.Server
	config Config
}

// New builds the server around a runner.
func New(runner Runner, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	h := &handlers{runner: runner}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.health)
	r.Route("/api/v1/scraping", func(r chi.Router) {
		r.Post("/run", h.runSync)
		r.Post("/trigger", h.trigger)
		r.Get("/history", h.history)
		r.Get("/sources", h.sources)
	})

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		config: cfg,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured budget.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
