// Package registry provides model provider factory registration and lookup.
//
// # Adding a New Provider
//
// Each provider package exposes an explicit registration function:
//
//	func RegisterProviderFactory() {
//	    if registry.IsRegistered(ProviderType) {
//	        return
//	    }
//	    registry.RegisterFactory(registry.ProviderFactory{
//	        Type:           ProviderType,
//	        Description:    "Google Gemini API provider",
//	        Create:         CreateFromConfig,
//	        ValidateConfig: ValidateConfig,
//	    })
//	}
package registry

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// Options carries the runtime dependencies a factory may need.
type Options struct {
	// HTTPClient overrides the transport used for model API calls.
	HTTPClient *http.Client
	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
	// MediaDir is the upload directory local media references must stay
	// within.
	MediaDir string
	// MaxMediaBytes bounds downloaded remote media.
	MaxMediaBytes int64
}

// ProviderFactory defines how to create a model invoker of a specific type.
type ProviderFactory struct {
	// Type is the identifier used in model.provider.
	Type string

	// Description provides a human-readable description of the provider
	Description string

	// Create instantiates a new invoker from configuration.
	Create func(cfg config.ModelConfig, opts Options) (ports.ModelInvoker, error)

	// ValidateConfig performs provider-specific configuration validation.
	// Optional: if nil, no additional validation is performed.
	ValidateConfig func(cfg config.ModelConfig) error
}

var (
	factoryMu   sync.RWMutex
	factoryMap  = make(map[string]ProviderFactory)
	factoryList []ProviderFactory
)

// RegisterFactory registers a provider factory for a specific type.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("provider factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.Type))
	}

	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
	factoryList = append(factoryList, f)
}

// GetFactory returns the factory for a provider type, if registered.
func GetFactory(providerType string) (ProviderFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[providerType]
	return f, ok
}

// ListFactories returns all registered provider factories sorted by type.
func ListFactories() []ProviderFactory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]ProviderFactory, len(factoryList))
	copy(result, factoryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// ListProviderTypes returns all registered provider type names.
func ListProviderTypes() []string {
	factories := ListFactories()
	types := make([]string, len(factories))
	for i, f := range factories {
		types[i] = f.Type
	}
	return types
}

// IsRegistered returns true if a provider type is registered.
func IsRegistered(providerType string) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// CreateFromFactory creates an invoker using the registered factory.
func CreateFromFactory(cfg config.ModelConfig, opts Options) (ports.ModelInvoker, error) {
	f, ok := GetFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Provider, ListProviderTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration for provider type %s: %w", cfg.Provider, err)
		}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return f.Create(cfg, opts)
}
