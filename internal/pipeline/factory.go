package pipeline

import (
	"log/slog"
	"math/rand"

	"github.com/tjfontaine/audiencesim/internal/analysis"
	"github.com/tjfontaine/audiencesim/internal/config"
	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/interaction"
	"github.com/tjfontaine/audiencesim/internal/network"
	"github.com/tjfontaine/audiencesim/internal/prediction"
	"github.com/tjfontaine/audiencesim/internal/reaction"
	"github.com/tjfontaine/audiencesim/internal/results"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
	"github.com/tjfontaine/audiencesim/internal/tokens"
)

// Deps are the collaborators of the standard stage graph.
type Deps struct {
	Invoker    ports.ModelInvoker
	Personas   ports.PersonaSource
	Simulation config.SimulationConfig
	Logger     *slog.Logger
	Metrics    *telemetry.Metrics
	// Rand seeds the prediction variance. Nil uses a time-seeded source.
	Rand *rand.Rand
}

// NewStandardExecutor builds the executor for the full simulation graph.
func NewStandardExecutor(d Deps) *Executor {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var budget *tokens.Budget
	if d.Simulation.PromptTokenBudget > 0 {
		budget = tokens.NewBudget(d.Simulation.PromptTokenBudget, nil)
	}

	analyzer := analysis.NewAnalyzer(d.Invoker, logger)
	reactions := reaction.NewGenerator(d.Invoker,
		reaction.WithLogger(logger),
		reaction.WithMetrics(d.Metrics),
		reaction.WithEventsPerPersona(d.Simulation.EventsPerPersona))

	return NewExecutor(ExecutorConfig{
		Personas: d.Personas,
		Analysis: map[domain.ContentType]ports.Stage{
			domain.ContentVideo: analysis.NewVideoStage(analyzer),
			domain.ContentText:  analysis.NewTextStage(analyzer),
		},
		Stages: []StageConfig{
			{Order: 10, Stage: reaction.NewInitialStage(reactions)},
			{Order: 20, Stage: network.NewStage(network.NewSynthesizer(d.Invoker,
				network.WithLogger(logger),
				network.WithBudget(budget)))},
			{Order: 30, Stage: interaction.NewStage(interaction.NewSimulator(d.Invoker,
				interaction.WithLogger(logger),
				interaction.WithBudget(budget),
				interaction.WithMaxEvents(d.Simulation.MaxEvents)))},
			{Order: 40, Stage: reaction.NewSecondStage(reactions)},
			{Order: 50, Stage: results.NewStage(logger)},
			{Order: 60, Stage: prediction.NewStage(prediction.NewProjector(d.Invoker,
				prediction.WithLogger(logger),
				prediction.WithRand(d.Rand)))},
		},
		Logger:  logger,
		Metrics: d.Metrics,
	})
}
