// Package results compiles a run's reactions, network and interactions into
// final metrics, a graph projection, an engagement timeline and insights.
//
// Everything here is pure and deterministic given the pipeline state.
package results

import (
	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// Compiled is the output of Compile.
type Compiled struct {
	Metrics  *domain.FinalMetrics
	Graph    *domain.NodeGraphData
	Timeline []domain.TimelineEvent
	Insights *domain.ReactionInsights
}

// Compile derives every results field from state. Second reactions are used
// when present; otherwise the initial reactions stand in for them.
func Compile(state *domain.PipelineState) Compiled {
	active := ActiveReactions(state.SecondReactions, state.InitialReactions)
	timeline := BuildTimeline(state.InitialReactions, state.InteractionEvents)

	metrics := BuildMetrics(active)
	metrics.PeakEngagementTime = PeakEngagementTime(timeline)
	metrics.TimeToViral = TimeToViral(timeline, len(active))

	return Compiled{
		Metrics:  metrics,
		Graph:    BuildNodeGraph(state.Personas, active, state.PersonaNetwork, state.InteractionEvents),
		Timeline: timeline,
		Insights: BuildInsights(InsightInputs{
			Platform: state.Platform,
			Personas: state.Personas,
			Initial:  state.InitialReactions,
			Active:   active,
			Network:  state.PersonaNetwork,
			Analysis: state.ContentAnalysis(),
		}),
	}
}

// ActiveReactions returns the reaction set results are computed over.
// Records without a persona id are skipped.
func ActiveReactions(second []domain.SecondReaction, initial []domain.InitialReaction) []domain.SecondReaction {
	out := make([]domain.SecondReaction, 0, max(len(second), len(initial)))
	for _, r := range second {
		if r.PersonaID != "" {
			out = append(out, r)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, r := range initial {
		if r.PersonaID != "" {
			out = append(out, r.AsSecond())
		}
	}
	return out
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}
