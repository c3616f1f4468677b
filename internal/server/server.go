// Package server exposes the quote engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/piwi3910/PressQuote/internal/costing"
)

// maxBodyBytes caps request bodies. Quote requests are a few hundred bytes.
const maxBodyBytes = 1 << 20

// Server is the HTTP front end of a Calculator.
type Server struct {
	calc      *costing.Calculator
	logger    log.Logger
	metrics   *metrics
	router    chi.Router
	http      *http.Server
	startTime time.Time
	ready     func(context.Context) error
}

// Option customizes a Server.
type Option func(*Server)

// WithReadiness sets the check /healthz runs, typically a rate store ping.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// New builds a Server listening on addr.
func New(addr string, calc *costing.Calculator, logger log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{
		calc:      calc,
		logger:    log.With(logger, "component", "http"),
		metrics:   newMetrics(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)
	r.Use(s.requestLog)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/quotes", s.handleQuotes)
		r.Post("/layout", s.handleLayout)
		r.Post("/layout/compare", s.handleCompare)
		r.Post("/breakdowns/override", s.handleOverride)
		r.Get("/settings", s.handleSettings)
	})
	return r
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	level.Info(s.logger).Log("msg", "starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	level.Info(s.logger).Log("msg", "shutting down HTTP server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		level.Debug(s.logger).Log(
			"msg", "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
