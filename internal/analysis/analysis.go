// Package analysis implements the content analysis stages: one for video
// content and one for text posts. Both produce a free-form domain.Analysis
// consumed by the reaction stages.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/audiencesim/internal/codec"
	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/prompts"
)

const temperature = 0.3

// ErrNoContent is returned when the branch's content payload is empty.
var ErrNoContent = errors.New("no content provided")

// Analyzer requests content analyses from the model.
type Analyzer struct {
	invoker ports.ModelInvoker
	logger  *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(invoker ports.ModelInvoker, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{invoker: invoker, logger: logger}
}

// AnalyzeVideo uploads the media at ref and analyzes it.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, ref string) (domain.Analysis, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("video: %w: %w", ErrNoContent, domain.ErrValidation)
	}
	prompt, err := prompts.Render(prompts.VideoAnalysis, nil)
	if err != nil {
		return nil, err
	}
	raw, err := a.invoker.GenerateWithMedia(ctx, ports.MediaRequest{
		GenerateRequest: ports.GenerateRequest{
			Prompt:      prompt,
			Temperature: temperature,
			JSON:        true,
		},
		MediaRef: ref,
	})
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// AnalyzeText analyzes a text post.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string) (domain.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text: %w: %w", ErrNoContent, domain.ErrValidation)
	}
	prompt, err := prompts.Render(prompts.TextAnalysis, map[string]any{"Text": text})
	if err != nil {
		return nil, err
	}
	raw, err := a.invoker.Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw string) (domain.Analysis, error) {
	m, err := codec.Repair(raw)
	if err != nil {
		return nil, err
	}
	return domain.Analysis(m), nil
}

// Category returns the analysis content_category, or "unknown".
func Category(a domain.Analysis) string {
	if c, ok := a["content_category"].(string); ok && c != "" {
		return c
	}
	return "unknown"
}
