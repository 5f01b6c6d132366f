// Package network synthesizes the social graph connecting a run's personas.
//
// The model proposes edges, clusters and influence hubs. Whatever it returns
// is validated against the persona set so that no edge references an unknown
// persona. When the model call fails, its output cannot be repaired, or no
// edge survives validation, a deterministic fallback network is used instead.
package network

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
	"github.com/tjfontaine/audiencesim/internal/tokens"
)

const temperature = 0.7

// ErrNoValidEdges is returned when the model's network had no edge left
// after validation.
var ErrNoValidEdges = errors.New("no valid edges in generated network")

// Synthesizer builds persona networks.
type Synthesizer struct {
	invoker ports.ModelInvoker
	budget  *tokens.Budget
	logger  *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBudget clips the persona summary to b.
func WithBudget(b *tokens.Budget) Option {
	return func(s *Synthesizer) { s.budget = b }
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(invoker ports.ModelInvoker, opts ...Option) *Synthesizer {
	s := &Synthesizer{invoker: invoker, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize always returns a valid network. The error is non-nil when the
// fallback network was substituted, and says why.
func (s *Synthesizer) Synthesize(ctx context.Context, platform string, personas []domain.Persona, reactions []domain.InitialReaction) (*domain.PersonaNetwork, error) {
	ids := domain.PersonaIDs(personas)

	proposed, err := s.generate(ctx, platform, personas, reactions)
	if err != nil {
		return FallbackNetwork(ids), err
	}

	net, rep := ValidateEdges(proposed, ids)
	if rep.Changed() {
		s.logger.Info("network validated",
			slog.Int("edges_repaired", rep.EdgesRepaired),
			slog.Int("edges_dropped", rep.EdgesDropped),
			slog.Int("members_dropped", rep.MembersDropped),
			slog.Int("hubs_dropped", rep.HubsDropped))
	}
	if len(net.Edges) == 0 && len(ids) > 1 {
		return FallbackNetwork(ids), fmt.Errorf("%w (%d proposed): %w", ErrNoValidEdges, len(proposed.Edges), domain.ErrValidation)
	}
	return net, nil
}

func (s *Synthesizer) generate(ctx context.Context, platform string, personas []domain.Persona, reactions []domain.InitialReaction) (*domain.PersonaNetwork, error) {
	summary, dropped := s.budget.ClipLines(PersonaSummaryLines(personas))
	if dropped > 0 {
		s.logger.Debug("persona summary clipped", slog.Int("dropped", dropped))
	}

	prompt, err := prompts.Render(prompts.NetworkGeneration, map[string]any{
		"Platform":         platform,
		"PersonasSummary":  summary,
		"ReactionsSummary": ReactionsSummary(reactions),
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.invoker.Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	var net domain.PersonaNetwork
	if err := codec.RepairInto(raw, &net); err != nil {
		return nil, err
	}
	return &net, nil
}

// PersonaSummaryLines renders one compact line per persona.
func PersonaSummaryLines(personas []domain.Persona) []string {
	lines := make([]string, len(personas))
	for i, p := range personas {
		lines[i] = fmt.Sprintf("- %s: %s, %d, %s, interests: %s, traits: %s",
			p.PersonaID, p.Name, p.Age, p.Location,
			strings.Join(head(p.Interests, 3), ", "),
			strings.Join(head(p.PersonalityTraits, 2), ", "))
	}
	return lines
}

// ReactionsSummary renders aggregate initial reaction statistics. A persona
// counts as engaged when its engagement probability exceeds 0.5.
func ReactionsSummary(reactions []domain.InitialReaction) string {
	engaged := 0
	for _, r := range reactions {
		if r.EngagementProbability > 0.5 {
			engaged++
		}
	}
	rate := 0.0
	if len(reactions) > 0 {
		rate = float64(engaged) / float64(len(reactions)) * 100
	}
	return fmt.Sprintf("Total personas: %d\nEngaged: %d\nEngagement rate: %.1f%%\n", len(reactions), engaged, rate)
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
