package runtime

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/provider/offline"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithConfigFile loads configuration from path plus SIM_ environment
// overrides. A missing file leaves the defaults.
func WithConfigFile(path string) Option {
	return func(s *Service) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.cfg = cfg
		return nil
	}
}

// WithOffline replaces the configured model provider with the offline one,
// so every stage produces its fallback output. It must follow the config
// option.
func WithOffline() Option {
	return func(s *Service) error {
		if s.cfg == nil {
			return fmt.Errorf("config must be set before offline mode")
		}
		s.cfg.Model.Provider = offline.ProviderType
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithInvoker injects a model invoker, bypassing the provider registry and
// the call limiter.
func WithInvoker(inv ports.ModelInvoker) Option {
	return func(s *Service) error {
		s.invoker = inv
		return nil
	}
}

// WithPersonaSource injects the persona corpus.
func WithPersonaSource(src ports.PersonaSource) Option {
	return func(s *Service) error {
		s.personas = src
		return nil
	}
}

// WithStore injects the run store.
func WithStore(store ports.RunStore) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithMetrics injects the metrics registry.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) error {
		s.metrics = m
		return nil
	}
}

// WithRand seeds the prediction variance.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) error {
		s.rng = rng
		return nil
	}
}
