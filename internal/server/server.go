package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/parcelgate/internal/checkout"
	"github.com/tournevent/parcelgate/internal/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP server for the checkout service.
type Server struct {
	port       int
	adminToken string
	service    *checkout.Service
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics
	gatherer   prometheus.Gatherer
	checks     map[string]HealthCheck
}

// Config holds server configuration.
type Config struct {
	Port int
	// AdminToken protects the /admin routes with a bearer token when set.
	AdminToken string
}

// New creates a new server instance. Metrics are served from gatherer.
func New(cfg Config, service *checkout.Service, metrics *telemetry.Metrics, gatherer prometheus.Gatherer, logger *otelzap.Logger) *Server {
	return &Server{
		port:       cfg.Port,
		adminToken: cfg.AdminToken,
		service:    service,
		logger:     logger,
		metrics:    metrics,
		gatherer:   gatherer,
		checks:     make(map[string]HealthCheck),
	}
}

// WithHealthCheck adds a dependency probed by /health.
func (s *Server) WithHealthCheck(name string, check HealthCheck) *Server {
	s.checks[name] = check
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.identifyShopper)

		// Checkout UI
		r.Post("/ajax", s.handleAjax)
		r.Get("/checkout/bootstrap", s.handleBootstrap)

		// Hosting shop hooks
		r.Post("/shipping/calculate", s.handleCalculate)
		r.Post("/orders/locker", s.handleOrderLocker)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/orders/shipment", s.handleCreateShipment)
		r.Get("/admin/instances/{id}/account", s.handleAccount)
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Ctx(ctx).Warn("Health check failed", zap.String("check", name), zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(name + " unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// observe records every routed request by route pattern and status code.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" || pattern == "/metrics" {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.RecordRequest(r.Method+" "+pattern, strconv.Itoa(status), elapsed.Seconds())
		s.logger.Ctx(r.Context()).Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("route", pattern),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
