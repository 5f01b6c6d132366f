package prediction

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// Stage runs the projector. It reaches the terminal completed status even
// when the refinement fails, since the baseline is always produced.
type Stage struct {
	proj *Projector
}

// NewStage creates the platform prediction stage.
func NewStage(p *Projector) *Stage {
	return &Stage{proj: p}
}

func (s *Stage) Name() string { return domain.StagePlatformPrediction }

func (s *Stage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	if state.FinalMetrics == nil {
		s.proj.logger.Warn("final metrics missing, projecting from zero engagement",
			slog.String("run_id", state.RunID))
	}

	preds, err := s.proj.Project(ctx, state)
	next.PlatformPredictions = preds
	next.Status = domain.StatusCompleted

	s.proj.logger.Info("platform predictions",
		slog.String("run_id", state.RunID),
		slog.String("platform", state.Platform),
		slog.String("views", FormatMetric(preds.Views())),
		slog.String("method", preds.PredictionMethod),
		slog.Bool("viral_potential", preds.IsViralPotential))

	if err != nil {
		return ports.Fail(next, domain.StageErrorFrom(s.Name(), "Platform refinement failed, using baseline predictions", err))
	}
	return ports.Ok(next)
}
