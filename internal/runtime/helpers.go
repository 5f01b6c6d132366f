package runtime

import (
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/provider"
	"github.com/tjfontaine/audiencesim/internal/provider/registry"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

// newInvoker creates the configured provider and wraps it in the shared
// call limiter. Media is confined to the server's upload directory.
func newInvoker(cfg config.ModelConfig, server config.ServerConfig, logger *slog.Logger, metrics *telemetry.Metrics) (ports.ModelInvoker, error) {
	inv, err := registry.CreateFromFactory(cfg, registry.Options{
		Logger:        logger,
		MediaDir:      server.UploadDir,
		MaxMediaBytes: server.MaxUploadBytes,
	})
	if err != nil {
		return nil, err
	}

	limiter := provider.NewLimiter(cfg.MaxConcurrent)
	return provider.NewLimited(inv, limiter, callConfig(cfg),
		provider.WithMetrics(metrics),
		provider.WithLogger(logger),
	), nil
}

func callConfig(cfg config.ModelConfig) provider.CallConfig {
	return provider.CallConfig{
		MaxRetries:   cfg.MaxRetries,
		BaseDelay:    cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
		Timeout:      cfg.Timeout,
		MediaTimeout: cfg.MediaTimeout,
	}
}
