package reaction

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// InitialStage runs Generator.Initial over the run's personas.
type InitialStage struct {
	gen *Generator
}

// NewInitialStage creates the initial reaction stage.
func NewInitialStage(g *Generator) *InitialStage {
	return &InitialStage{gen: g}
}

func (s *InitialStage) Name() string { return domain.StageInitialReactions }

// Process requires a content analysis. Without one it records a
// missing_upstream error and returns empty reactions.
func (s *InitialStage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	analysis := state.ContentAnalysis()
	if analysis == nil {
		next.InitialReactions = []domain.InitialReaction{}
		next.Status = domain.StatusInitialReactionsFailed
		return ports.Fail(next, domain.NewStageError(s.Name(), domain.ErrorKindMissingUpstream,
			"Initial reaction generation failed: content analysis not found in state"))
	}

	reactions := s.gen.Initial(ctx, state.Personas, analysis)

	engaged := 0
	for _, r := range reactions {
		if r.EngagementProbability > 0.5 {
			engaged++
		}
	}
	s.gen.logger.Info("initial reactions complete",
		slog.String("run_id", state.RunID),
		slog.Int("personas", len(reactions)),
		slog.Int("engaged", engaged))

	next.InitialReactions = reactions
	next.Status = domain.StatusInitialReactionsComplete
	return ports.Ok(next)
}

// SecondStage runs Generator.Second with the run's interaction events.
type SecondStage struct {
	gen *Generator
}

// NewSecondStage creates the second reaction stage.
func NewSecondStage(g *Generator) *SecondStage {
	return &SecondStage{gen: g}
}

func (s *SecondStage) Name() string { return domain.StageSecondReactions }

// Process requires personas and initial reactions. Missing interaction
// events are valid and mean no social signal was received.
func (s *SecondStage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	if len(state.Personas) == 0 || len(state.InitialReactions) == 0 {
		next.Status = domain.StatusSecondReactionsFailed
		return ports.Fail(next, domain.NewStageError(s.Name(), domain.ErrorKindMissingUpstream,
			"Second reaction generation failed: missing personas or initial reactions"))
	}

	reactions := s.gen.Second(ctx, state.Personas, state.InitialReactions, state.InteractionEvents)

	changed, influenced := 0, 0
	for _, r := range reactions {
		if r.ChangedFromInitial {
			changed++
		}
		if r.InfluenceLevel > 0.3 {
			influenced++
		}
	}
	s.gen.logger.Info("second reactions complete",
		slog.String("run_id", state.RunID),
		slog.Int("changed", changed),
		slog.Int("influenced", influenced))

	next.SecondReactions = reactions
	next.Status = domain.StatusSecondReactionsComplete
	return ports.Ok(next)
}
