package registration

import (
	"github.com/tjfontaine/audiencesim/internal/provider/gemini"
	"github.com/tjfontaine/audiencesim/internal/provider/offline"
)

// RegisterBuiltins registers the built-in model providers explicitly.
// It is called from cmd/audiencesim and tests before building an invoker.
func RegisterBuiltins() {
	gemini.RegisterProviderFactory()
	offline.RegisterProviderFactory()
}
