// Package ports defines the core interfaces between the simulation pipeline
// and its collaborators.
package ports

import "context"

// ModelTier selects which configured model serves a call.
type ModelTier string

const (
	// TierDefault is the main model, used for analysis and network synthesis.
	TierDefault ModelTier = "default"
	// TierFast serves the high-volume per-persona calls.
	TierFast ModelTier = "fast"
	// TierLite serves the cheap refinement call.
	TierLite ModelTier = "lite"
)

// GenerateRequest is a single text generation call.
type GenerateRequest struct {
	// Prompt is the full prompt text.
	Prompt string
	// Tier selects the model when Model is empty.
	Tier ModelTier
	// Model overrides the tier with an explicit model name.
	Model string
	// Temperature is the sampling temperature.
	Temperature float32
	// JSON requests a JSON response mime type.
	JSON bool
	// MaxOutputTokens caps the response length. Zero means provider default.
	MaxOutputTokens int32
}

// MediaRequest is a generation call conditioned on a playable media file.
type MediaRequest struct {
	GenerateRequest
	// MediaRef is a remote http(s) URL or a local file path.
	MediaRef string
	// MIMEType of the media. Defaults to video/mp4.
	MIMEType string
}

// ModelInvoker is the model invocation capability. Implementations return
// the generated text or a classified failure after bounded retries.
type ModelInvoker interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	GenerateWithMedia(ctx context.Context, req MediaRequest) (string, error)
}
