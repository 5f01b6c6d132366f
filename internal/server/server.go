// Package server hosts the HTTP surface: a chi router with request id,
// structured logging, timeout, panic recovery and OpenTelemetry middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultRequestTimeout bounds a request when none is configured. A run
// executes synchronously inside its request, so this is generous.
const DefaultRequestTimeout = 10 * time.Minute

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server
}

// New creates a server listening on port. Handlers are mounted on Router by
// the caller.
func New(port int, timeout time.Duration, logger *slog.Logger, serviceName string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if serviceName == "" {
		serviceName = "audiencesim"
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RunInfoMiddleware)
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	})

	s := &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.http.Shutdown(ctx)
}
