package interaction

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// Stage runs the simulator over the run's network.
type Stage struct {
	sim *Simulator
}

// NewStage creates the interaction stage.
func NewStage(s *Simulator) *Stage {
	return &Stage{sim: s}
}

func (s *Stage) Name() string { return domain.StageInteractions }

// Process always sets InteractionResults and InteractionEvents.
func (s *Stage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	res, err := s.sim.Simulate(ctx, state.Platform, state.PersonaNetwork, state.InitialReactions)
	next.InteractionResults = res
	next.InteractionEvents = res.Events

	if err != nil {
		next.Status = domain.StatusInteractionsFailed
		return ports.Fail(next, domain.StageErrorFrom(s.Name(), "Interaction simulation failed", err))
	}

	s.sim.logger.Info("interactions simulated",
		slog.String("run_id", state.RunID),
		slog.Int("interactions", res.TotalInteractions),
		slog.Int("sharers", res.UniqueSharers),
		slog.Int("max_chain_length", res.MaxChainLength))

	next.Status = domain.StatusInteractionsComplete
	return ports.Ok(next)
}
