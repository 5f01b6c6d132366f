package results

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// Stage compiles the run's results.
type Stage struct {
	logger *slog.Logger
}

// NewStage creates the results compilation stage.
func NewStage(logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{logger: logger}
}

func (s *Stage) Name() string { return domain.StageResultsCompilation }

func (s *Stage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	if len(state.SecondReactions) == 0 {
		s.logger.Warn("second reactions missing, compiling from initial reactions",
			slog.String("run_id", state.RunID))
	}

	c := Compile(state)
	next.FinalMetrics = c.Metrics
	next.NodeGraphData = c.Graph
	next.EngagementTimeline = c.Timeline
	next.ReactionInsights = c.Insights

	s.logger.Info("results compiled",
		slog.String("run_id", state.RunID),
		slog.Int("total_views", c.Metrics.TotalViews),
		slog.Float64("engagement_rate", c.Metrics.EngagementRate))

	next.Status = domain.StatusComplete
	return ports.Ok(next)
}
