package network

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
)

// Stage runs the synthesizer over the run's personas.
type Stage struct {
	synth *Synthesizer
}

// NewStage creates the network generation stage.
func NewStage(s *Synthesizer) *Stage {
	return &Stage{synth: s}
}

func (s *Stage) Name() string { return domain.StageNetworkGeneration }

// Process always sets PersonaNetwork. When the fallback network is used the
// stage reports the cause and marks itself failed.
func (s *Stage) Process(ctx context.Context, state *domain.PipelineState) ports.StageResult {
	next := state.Clone()

	if len(state.Personas) == 0 {
		next.PersonaNetwork = FallbackNetwork(nil)
		next.Status = domain.StatusNetworkFailed
		return ports.Fail(next, domain.NewStageError(s.Name(), domain.ErrorKindMissingUpstream,
			"Network generation failed: personas not found in state"))
	}

	net, err := s.synth.Synthesize(ctx, state.Platform, state.Personas, state.InitialReactions)
	next.PersonaNetwork = net
	if err != nil {
		next.Status = domain.StatusNetworkFailed
		return ports.Fail(next, domain.StageErrorFrom(s.Name(), "Network generation failed, using fallback network", err))
	}

	s.synth.logger.Info("network generated",
		slog.String("run_id", state.RunID),
		slog.Int("edges", len(net.Edges)),
		slog.Int("clusters", len(net.Clusters)),
		slog.Int("hubs", len(net.Hubs)))

	next.Status = domain.StatusNetworkComplete
	return ports.Ok(next)
}
