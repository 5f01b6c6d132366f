// Package reaction generates per-persona engagement judgments: the initial
// reaction to the content and the second reaction after social exposure.
package reaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tjfontaine/audiencesim/internal/codec"
	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/fanout"
	"github.com/tjfontaine/audiencesim/internal/prompts"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

const (
	initialTemperature = 0.8
	secondTemperature  = 0.8

	// DefaultEventsPerPersona caps the events injected into a second
	// reaction prompt.
	DefaultEventsPerPersona = 10

	noInteractions = "No network interactions for this persona."
)

// Generator produces reactions for a population.
type Generator struct {
	invoker          ports.ModelInvoker
	logger           *slog.Logger
	metrics          *telemetry.Metrics
	eventsPerPersona int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics records fallback counts.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithEventsPerPersona sets the per-persona event cap.
func WithEventsPerPersona(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.eventsPerPersona = n
		}
	}
}

// NewGenerator creates a generator.
func NewGenerator(invoker ports.ModelInvoker, opts ...Option) *Generator {
	g := &Generator{
		invoker:          invoker,
		logger:           slog.Default(),
		eventsPerPersona: DefaultEventsPerPersona,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initial returns one initial reaction per persona, in persona order. A
// persona whose generation fails gets NeutralInitial.
func (g *Generator) Initial(ctx context.Context, personas []domain.Persona, analysis domain.Analysis) []domain.InitialReaction {
	return fanout.Run(ctx, personas,
		func(ctx context.Context, p domain.Persona) (domain.InitialReaction, error) {
			return g.initialFor(ctx, p, analysis)
		},
		func(p domain.Persona, f fanout.Failure) domain.InitialReaction {
			return NeutralInitial(p.PersonaID, f.Kind)
		},
		fanout.Options[domain.Persona]{
			Stage:   domain.StageInitialReactions,
			Key:     personaKey,
			Logger:  g.logger,
			Metrics: g.metrics,
		},
	)
}

func (g *Generator) initialFor(ctx context.Context, p domain.Persona, analysis domain.Analysis) (domain.InitialReaction, error) {
	prompt, err := prompts.Render(prompts.InitialReaction, map[string]any{
		"PersonaID": p.PersonaID,
		"Persona":   p,
		"Analysis":  analysis,
	})
	if err != nil {
		return domain.InitialReaction{}, err
	}

	raw, err := g.invoker.Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Tier:        ports.TierFast,
		Temperature: initialTemperature,
		JSON:        true,
	})
	if err != nil {
		return domain.InitialReaction{}, err
	}

	var r domain.InitialReaction
	if err := codec.RepairInto(raw, &r); err != nil {
		return domain.InitialReaction{}, err
	}
	r.PersonaID = p.PersonaID
	return r.Normalize(), nil
}

// Second returns one second reaction per persona, in persona order. Each
// persona sees at most the configured number of events targeting it. A
// persona whose generation fails keeps its initial reaction unchanged.
func (g *Generator) Second(ctx context.Context, personas []domain.Persona, initial []domain.InitialReaction, events []domain.InteractionEvent) []domain.SecondReaction {
	byID := make(map[string]domain.InitialReaction, len(initial))
	for _, r := range initial {
		byID[r.PersonaID] = r
	}

	return fanout.Run(ctx, personas,
		func(ctx context.Context, p domain.Persona) (domain.SecondReaction, error) {
			return g.secondFor(ctx, p, initialOrNeutral(byID, p.PersonaID), EventsFor(p.PersonaID, events, g.eventsPerPersona))
		},
		func(p domain.Persona, f fanout.Failure) domain.SecondReaction {
			return UnchangedSecond(initialOrNeutral(byID, p.PersonaID), f.Kind)
		},
		fanout.Options[domain.Persona]{
			Stage:   domain.StageSecondReactions,
			Key:     personaKey,
			Logger:  g.logger,
			Metrics: g.metrics,
		},
	)
}

func (g *Generator) secondFor(ctx context.Context, p domain.Persona, initial domain.InitialReaction, events []domain.InteractionEvent) (domain.SecondReaction, error) {
	prompt, err := prompts.Render(prompts.SecondReaction, map[string]any{
		"PersonaID":    p.PersonaID,
		"Persona":      p,
		"Initial":      initial,
		"Interactions": FormatInteractions(events),
	})
	if err != nil {
		return domain.SecondReaction{}, err
	}

	raw, err := g.invoker.Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Tier:        ports.TierLite,
		Temperature: secondTemperature,
		JSON:        true,
	})
	if err != nil {
		return domain.SecondReaction{}, err
	}

	var r domain.SecondReaction
	if err := codec.RepairInto(raw, &r); err != nil {
		return domain.SecondReaction{}, err
	}
	r.PersonaID = p.PersonaID
	return r.Normalize(), nil
}

// NeutralInitial is the "no engagement" record substituted for a failed
// initial reaction.
func NeutralInitial(personaID string, kind domain.ErrorKind) domain.InitialReaction {
	return domain.InitialReaction{
		PersonaID: personaID,
		Reasoning: "Error generating reaction: " + string(kind),
		Sentiment: domain.SentimentNeutral,
	}
}

// UnchangedSecond carries an initial reaction into the second round with no
// influence, substituted for a failed second reaction.
func UnchangedSecond(initial domain.InitialReaction, kind domain.ErrorKind) domain.SecondReaction {
	r := initial.AsSecond()
	r.Reasoning = "Error generating updated reaction: " + string(kind)
	return r
}

func initialOrNeutral(byID map[string]domain.InitialReaction, id string) domain.InitialReaction {
	if r, ok := byID[id]; ok {
		return r
	}
	return NeutralInitial(id, domain.ErrorKindMissingUpstream)
}

// EventsFor returns up to limit events whose target is personaID, in input
// order. A limit <= 0 returns all of them.
func EventsFor(personaID string, events []domain.InteractionEvent, limit int) []domain.InteractionEvent {
	var out []domain.InteractionEvent
	for _, e := range events {
		if e.TargetPersonaID != personaID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// FormatInteractions renders events for a second reaction prompt.
func FormatInteractions(events []domain.InteractionEvent) string {
	if len(events) == 0 {
		return noInteractions
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Received %d interactions:\n", len(events))
	for _, e := range events {
		content := "N/A"
		if e.Content != nil {
			content = *e.Content
		}
		fmt.Fprintf(&sb, "- %s %s: %s (influence: %.2f)\n", e.SourcePersonaID, e.InteractionType, content, e.InfluenceStrength)
	}
	return sb.String()
}

func personaKey(p domain.Persona) string { return p.PersonaID }
