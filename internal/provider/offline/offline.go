// Package offline provides a model invoker that never reaches a model.
// Every stage falls back to its neutral records, which makes it useful for
// dry runs and for exercising the pipeline without credentials.
package offline

import (
	"context"
	"errors"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/provider"
	"github.com/tjfontaine/audiencesim/internal/provider/registry"
)

// ProviderType is the model.provider value selecting this package.
const ProviderType = "offline"

// ErrDisabled is returned by every call.
var ErrDisabled = errors.New("model calls disabled")

// Provider fails every call without retrying.
type Provider struct{}

// New returns an offline provider.
func New() *Provider { return &Provider{} }

// Generate implements ports.ModelInvoker.
func (Provider) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	return "", provider.Permanent(ErrDisabled)
}

// GenerateWithMedia implements ports.ModelInvoker.
func (Provider) GenerateWithMedia(ctx context.Context, req ports.MediaRequest) (string, error) {
	return "", provider.Permanent(ErrDisabled)
}

// CreateFromConfig ignores cfg.
func CreateFromConfig(cfg config.ModelConfig, opts registry.Options) (ports.ModelInvoker, error) {
	return New(), nil
}

// RegisterProviderFactory registers the offline factory once.
func RegisterProviderFactory() {
	if registry.IsRegistered(ProviderType) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:        ProviderType,
		Description: "Disabled model; every stage uses its fallback output",
		Create:      CreateFromConfig,
	})
}

var _ ports.ModelInvoker = Provider{}
