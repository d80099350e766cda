// Package httpapi exposes the Prometheus /metrics endpoint and a
// liveness /healthz probe on a chi router with request id, recoverer, and
// structured request logging middleware.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/partitiond/internal/logger"
)

// HealthStatus is the JSON body served at /healthz.
type HealthStatus struct {
	Initialized    bool `json:"initialized"`
	PartitionCount int  `json:"partition_count"`
}

// StatusFunc reports the host's current bootstrap/ownership snapshot.
type StatusFunc func() HealthStatus

// Server serves /metrics and /healthz on its own port.
type Server struct {
	httpServer *http.Server
	port       int
}

// New builds the router and binds it to port. registry may be nil, in
// which case /metrics is not registered (metrics disabled).
func New(port int, registry *prometheus.Registry, status StatusFunc) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		var s HealthStatus
		if status != nil {
			s = status()
		}

		w.Header().Set("Content-Type", "application/json")
		if !s.Initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(s)
	})

	return &Server{
		httpServer: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: r},
		port:       port,
	}
}

// Start begins serving and blocks until the server stops or errors.
func (s *Server) Start(ctx context.Context) error {
	logger.Info("starting metrics/health http server", "port", s.port)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("http request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
