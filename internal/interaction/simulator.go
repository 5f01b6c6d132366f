// Package interaction simulates how content spreads through a persona
// network as a bounded set of discrete interaction events.
package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/codec"
	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/network"
	"github.com/tjfontaine/audiencesim/internal/prompts"
	"github.com/tjfontaine/audiencesim/internal/tokens"
)

const (
	temperature = 0.7

	// DefaultMaxEvents caps the events kept from one simulation.
	DefaultMaxEvents = 500
)

// Engagement levels used in the reaction projection.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Simulator runs the interaction model call.
type Simulator struct {
	invoker   ports.ModelInvoker
	budget    *tokens.Budget
	maxEvents int
	logger    *slog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBudget clips the reaction projection to b.
func WithBudget(b *tokens.Budget) Option {
	return func(s *Simulator) { s.budget = b }
}

// WithMaxEvents sets the event cap.
func WithMaxEvents(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.maxEvents = n
		}
	}
}

// NewSimulator creates a simulator.
func NewSimulator(invoker ports.ModelInvoker, opts ...Option) *Simulator {
	s := &Simulator{invoker: invoker, maxEvents: DefaultMaxEvents, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmptyResults is the valid no-interaction result. A fallback result is
// treated exactly like a genuine empty simulation downstream.
func EmptyResults(fallback bool) *domain.InteractionResults {
	return domain.EmptyInteractionResults(fallback)
}

// Simulate always returns a usable result. The error is non-nil when the
// fallback result was substituted.
func (s *Simulator) Simulate(ctx context.Context, platform string, net *domain.PersonaNetwork, reactions []domain.InitialReaction) (*domain.InteractionResults, error) {
	if net == nil {
		return EmptyResults(true), fmt.Errorf("persona network not found: %w", domain.ErrMissingUpstream)
	}

	reactionLines, dropped := s.budget.ClipLines(ProjectReactions(reactions))
	if dropped > 0 {
		s.logger.Debug("reaction projection clipped", slog.Int("dropped", dropped))
	}

	prompt, err := prompts.Render(prompts.Interaction, map[string]any{
		"Platform":  platform,
		"Network":   ProjectNetwork(net),
		"Reactions": reactionLines,
	})
	if err != nil {
		return EmptyResults(true), err
	}

	raw, err := s.invoker.Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Tier:        ports.TierFast,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return EmptyResults(true), err
	}

	var res domain.InteractionResults
	if err := codec.RepairInto(raw, &res); err != nil {
		return EmptyResults(true), err
	}

	out, rep := Sanitize(&res, network.NewIDSet(net.Nodes), s.maxEvents)
	if rep.Changed() {
		s.logger.Info("interaction events sanitized",
			slog.Int("events_repaired", rep.EventsRepaired),
			slog.Int("events_dropped", rep.EventsDropped),
			slog.Int("events_truncated", rep.EventsTruncated))
	}
	return out, nil
}

// NetworkProjection is the reduced network sent to the model.
type NetworkProjection struct {
	Edges []ProjectedEdge `json:"edges"`
	Hubs  []ProjectedHub  `json:"hubs"`
}

// ProjectedEdge is a weighted edge.
type ProjectedEdge struct {
	S string  `json:"s"`
	T string  `json:"t"`
	W float64 `json:"w"`
}

// ProjectedHub is a hub with its score.
type ProjectedHub struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ProjectedReaction is one persona's coarse initial reaction.
type ProjectedReaction struct {
	ID    string `json:"id"`
	Share bool   `json:"share"`
	Level string `json:"level"`
}

// ProjectNetwork reduces net to its edge list and hub scores.
func ProjectNetwork(net *domain.PersonaNetwork) NetworkProjection {
	p := NetworkProjection{
		Edges: make([]ProjectedEdge, len(net.Edges)),
		Hubs:  make([]ProjectedHub, len(net.Hubs)),
	}
	for i, e := range net.Edges {
		p.Edges[i] = ProjectedEdge{S: e.Source, T: e.Target, W: domain.Round(e.ConnectionStrength, 2)}
	}
	for i, h := range net.Hubs {
		p.Hubs[i] = ProjectedHub{ID: h.PersonaID, Score: domain.Round(h.InfluenceScore, 2)}
	}
	return p
}

// Level buckets an engagement probability.
func Level(p float64) string {
	switch {
	case p > 0.7:
		return LevelHigh
	case p > 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ProjectReactions renders one compact JSON object per reaction.
func ProjectReactions(reactions []domain.InitialReaction) []string {
	lines := make([]string, 0, len(reactions))
	for _, r := range reactions {
		b, err := json.Marshal(ProjectedReaction{ID: r.PersonaID, Share: r.WillShare, Level: Level(r.EngagementProbability)})
		if err != nil {
			continue
		}
		lines = append(lines, string(b))
	}
	return lines
}
