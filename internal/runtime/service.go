// Package runtime assembles the simulation service from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/tjfontaine/audiencesim/internal/api/simulation"
	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/personas"
	"github.com/tjfontaine/audiencesim/internal/pipeline"
	"github.com/tjfontaine/audiencesim/internal/registration"
	"github.com/tjfontaine/audiencesim/internal/server"
	"github.com/tjfontaine/audiencesim/internal/storage"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

// Service is the main entry point for running simulations, either one-shot
// through Run or over HTTP between Start and Shutdown.
type Service struct {
	// Dependencies (injected via options)
	cfg      *config.Config
	invoker  ports.ModelInvoker
	personas ports.PersonaSource
	store    ports.RunStore
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	rng      *rand.Rand

	// Built by New
	executor *pipeline.Executor
	server   *server.Server

	// Lifecycle management
	ctx            context.Context
	cancel         context.CancelFunc
	shutdownTracer func(context.Context) error
	serveErr       chan error
	mu             sync.Mutex
}

// New creates a Service with the given options. A configuration is
// required; every other dependency is built from it unless injected.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.cfg == nil {
		return nil, fmt.Errorf("configuration required (use WithConfigFile or WithConfig)")
	}

	registration.RegisterBuiltins()

	if s.metrics == nil {
		s.metrics = telemetry.NewMetrics(s.cfg.Telemetry.ServiceName)
	}

	if s.invoker == nil {
		inv, err := newInvoker(s.cfg.Model, s.cfg.Server, s.logger, s.metrics)
		if err != nil {
			return nil, fmt.Errorf("create model invoker: %w", err)
		}
		s.invoker = inv
	}

	if s.personas == nil {
		s.personas = personas.NewLoader(s.cfg.Personas.Dir, personas.WithLogger(s.logger))
	}

	if s.store == nil {
		store, err := storage.New(s.cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("create run store: %w", err)
		}
		s.store = store
	}

	s.executor = pipeline.NewStandardExecutor(pipeline.Deps{
		Invoker:    s.invoker,
		Personas:   s.personas,
		Simulation: s.cfg.Simulation,
		Logger:     s.logger,
		Metrics:    s.metrics,
		Rand:       s.rng,
	})

	s.server = s.newServer()

	s.logger.Info("service initialized",
		slog.String("provider", s.cfg.Model.Provider),
		slog.String("storage", s.cfg.Storage.Type),
		slog.String("personas", s.cfg.Personas.Dir))

	return s, nil
}

func (s *Service) newServer() *server.Server {
	srv := server.New(s.cfg.Server.Port, s.cfg.Server.RequestTimeout, s.logger, s.cfg.Telemetry.ServiceName)

	h := simulation.New(simulation.Config{
		Runner:         s.executor,
		Store:          s.store,
		Personas:       s.personas,
		Logger:         s.logger,
		UploadDir:      s.cfg.Server.UploadDir,
		MaxUploadBytes: s.cfg.Server.MaxUploadBytes,
	})
	srv.Router.Route("/api/v1", h.Routes)
	srv.Router.Handle("/metrics", s.metrics.Handler())

	return srv
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Executor returns the pipeline executor.
func (s *Service) Executor() *pipeline.Executor { return s.executor }

// Store returns the run store.
func (s *Service) Store() ports.RunStore { return s.store }

// Handler returns the HTTP handler without starting a listener.
func (s *Service) Handler() http.Handler { return s.server.Router }

// Run executes one simulation and stores its final state.
func (s *Service) Run(ctx context.Context, in domain.PipelineInputs) (*domain.PipelineState, error) {
	state, err := pipeline.RunPipeline(ctx, s.executor, uuid.NewString(), in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, state); err != nil {
		return state, fmt.Errorf("save run %s: %w", state.RunID, err)
	}
	return state, nil
}

// Start initializes tracing and the persona watcher, then serves HTTP in
// the background. Serve errors are reported by Wait.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(telemetry.TracerConfig{
			ServiceName: s.cfg.Telemetry.ServiceName,
			Version:     simulation.Version,
			SampleRatio: s.cfg.Telemetry.SampleRatio,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		s.shutdownTracer = shutdown
	}

	if s.cfg.Personas.Watch {
		if loader, ok := s.personas.(*personas.Loader); ok {
			if err := loader.Watch(s.ctx); err != nil {
				s.logger.Warn("persona watch disabled", slog.String("error", err.Error()))
			}
		}
	}

	s.serveErr = make(chan error, 1)
	go func() {
		s.serveErr <- s.server.Start()
	}()

	s.logger.Info("service started", slog.Int("port", s.cfg.Server.Port))
	return nil
}

// Wait blocks until the server stops or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	errc := s.serveErr
	s.mu.Unlock()
	if errc == nil {
		return fmt.Errorf("service not started")
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown gracefully stops the service and releases its resources.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down service")

	if s.cancel != nil {
		s.cancel()
	}

	var firstErr error
	if s.serveErr != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			firstErr = err
		}
	}

	if loader, ok := s.personas.(*personas.Loader); ok {
		if err := loader.Close(); err != nil {
			s.logger.Error("failed to close persona watcher", slog.String("error", err.Error()))
		}
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close storage", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	if s.shutdownTracer != nil {
		if err := s.shutdownTracer(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("service shutdown complete")
	return firstErr
}
