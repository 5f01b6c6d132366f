package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/telemetry"
)

const stagePrepare = "persona_loading"

// Executor orchestrates stage execution for simulation runs. It holds no
// per-run state and is safe for concurrent use.
type Executor struct {
	personas ports.PersonaSource
	analysis map[domain.ContentType]ports.Stage
	stages   []ports.Stage
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
}

// ExecutorConfig configures an executor.
type ExecutorConfig struct {
	Personas ports.PersonaSource
	// Analysis maps each content type to the stage that analyzes it.
	Analysis map[domain.ContentType]ports.Stage
	// Stages run after analysis, sorted by Order.
	Stages  []StageConfig
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// StageConfig is the configuration for a single stage.
type StageConfig struct {
	Order int
	Stage ports.Stage
}

// NewExecutor creates an executor from configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	stages := append([]StageConfig(nil), cfg.Stages...)
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Order < stages[j].Order
	})

	e := &Executor{
		personas: cfg.Personas,
		analysis: cfg.Analysis,
		stages:   make([]ports.Stage, len(stages)),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   telemetry.Tracer(),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	for i, s := range stages {
		e.stages[i] = s.Stage
	}
	return e
}

// StageNames returns the stage names in execution order for contentType.
func (e *Executor) StageNames(contentType domain.ContentType) []string {
	var names []string
	if s, ok := e.analysis[contentType]; ok {
		names = append(names, s.Name())
	}
	for _, s := range e.stages {
		names = append(names, s.Name())
	}
	return names
}

// Prepare validates inputs and returns the initial state with personas
// loaded. The error is a *domain.StageError.
func (e *Executor) Prepare(ctx context.Context, runID string, in domain.PipelineInputs) (*domain.PipelineState, error) {
	in.Platform = strings.ToLower(strings.TrimSpace(in.Platform))
	state := domain.NewPipelineState(runID, in)

	if err := e.validate(state); err != nil {
		return state, err
	}

	personas, err := e.personas.Load(ctx, state.Platform)
	if err != nil {
		return state, domain.StageErrorFrom(stagePrepare,
			fmt.Sprintf("Failed to load personas for %s", state.Platform), err)
	}
	if len(personas) == 0 {
		return state, domain.NewStageError(stagePrepare, domain.ErrorKindNotFound,
			fmt.Sprintf("No personas available for %s", state.Platform)).WithErr(domain.ErrNotFound)
	}
	state.Personas = personas
	return state, nil
}

func (e *Executor) validate(state *domain.PipelineState) *domain.StageError {
	invalid := func(msg string) *domain.StageError {
		return domain.NewStageError(stagePrepare, domain.ErrorKindValidation, msg).WithErr(domain.ErrValidation)
	}
	if state.Platform == "" {
		return invalid("platform is required")
	}
	if _, ok := e.analysis[state.ContentType]; !ok {
		return invalid(fmt.Sprintf("unsupported content type %q", state.ContentType))
	}
	if len(state.PriorAnalysis) > 0 {
		return nil
	}
	switch state.ContentType {
	case domain.ContentVideo:
		if state.ContentURL == "" {
			return invalid("video_url is required for video content")
		}
	case domain.ContentText:
		if strings.TrimSpace(state.TextContent) == "" {
			return invalid("text_content is required for text content")
		}
	}
	return nil
}

// Run executes a whole simulation. It never fails: when the run cannot be
// prepared the returned state carries the error and no stage runs.
func (e *Executor) Run(ctx context.Context, runID string, in domain.PipelineInputs) *domain.PipelineState {
	state, err := e.Prepare(ctx, runID, in)
	if err != nil {
		e.logger.Error("run could not start",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
		return state.WithError(err.Error())
	}
	return e.Execute(ctx, state)
}

// Execute runs every stage over a prepared state.
func (e *Executor) Execute(ctx context.Context, state *domain.PipelineState) *domain.PipelineState {
	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", state.RunID),
		attribute.String("platform", state.Platform),
		attribute.String("content_type", string(state.ContentType)),
	))
	defer span.End()

	start := time.Now()
	e.logger.Info("run started",
		slog.String("run_id", state.RunID),
		slog.String("platform", state.Platform),
		slog.String("content_type", string(state.ContentType)),
		slog.Int("personas", len(state.Personas)))

	stages := make([]ports.Stage, 0, len(e.stages)+1)
	stages = append(stages, e.analysis[state.ContentType])
	stages = append(stages, e.stages...)

	for _, s := range stages {
		state = e.runStage(ctx, s, state)
	}

	span.SetAttributes(
		attribute.String("status", string(state.Status)),
		attribute.Int("errors", len(state.Errors)))
	e.metrics.RunFinished(string(state.Status))
	e.logger.Info("run finished",
		slog.String("run_id", state.RunID),
		slog.String("status", string(state.Status)),
		slog.Int("errors", len(state.Errors)),
		slog.Duration("duration", time.Since(start)))
	return state
}

func (e *Executor) runStage(ctx context.Context, s ports.Stage, prev *domain.PipelineState) *domain.PipelineState {
	name := s.Name()
	ctx, span := e.tracer.Start(ctx, "stage."+name, trace.WithAttributes(
		attribute.String("run_id", prev.RunID),
		attribute.String("stage", name),
	))
	defer span.End()

	start := time.Now()
	res := e.process(ctx, s, prev)
	e.metrics.ObserveStage(name, time.Since(start))

	next := res.State
	if next == nil || next == prev {
		next = prev.Clone()
	}

	if restored := domain.RestoreRegressions(prev, next); len(restored) > 0 {
		verr := domain.NewStageError(name, domain.ErrorKindValidation,
			"stage cleared populated fields: "+strings.Join(restored, ", "))
		next.Errors = append(next.Errors, verr.Error())
		e.metrics.StageError(name, string(verr.Kind))
		e.logger.Error("stage regressed state",
			slog.String("run_id", prev.RunID),
			slog.String("stage", name),
			slog.Any("fields", restored))
	}

	if res.Err != nil {
		next.Errors = append(next.Errors, res.Err.Error())
		e.metrics.StageError(name, string(res.Err.Kind))
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Message)
		e.logger.Warn("stage failed",
			slog.String("run_id", prev.RunID),
			slog.String("stage", name),
			slog.String("kind", string(res.Err.Kind)),
			slog.String("error", res.Err.Error()))
	}

	span.SetAttributes(attribute.String("status", string(next.Status)))
	e.logger.Debug("stage finished",
		slog.String("run_id", prev.RunID),
		slog.String("stage", name),
		slog.String("status", string(next.Status)),
		slog.Duration("duration", time.Since(start)))
	return next
}

// process runs the stage, converting a panic into an internal error on a
// copy of the input state.
func (e *Executor) process(ctx context.Context, s ports.Stage, prev *domain.PipelineState) (res ports.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			failed := prev.Clone()
			failed.Status = FailedStatus(s.Name())
			res = ports.Fail(failed, domain.NewStageError(s.Name(), domain.ErrorKindInternal,
				fmt.Sprintf("unexpected error: %v", r)))
		}
	}()
	return s.Process(ctx, prev)
}

var failedStatuses = map[string]domain.Status{
	domain.StageVideoAnalysis:      domain.StatusVideoAnalysisFailed,
	domain.StageTextAnalysis:       domain.StatusTextAnalysisFailed,
	domain.StageInitialReactions:   domain.StatusInitialReactionsFailed,
	domain.StageNetworkGeneration:  domain.StatusNetworkFailed,
	domain.StageInteractions:       domain.StatusInteractionsFailed,
	domain.StageSecondReactions:    domain.StatusSecondReactionsFailed,
	domain.StageResultsCompilation: domain.StatusCompilationFailed,
	domain.StagePlatformPrediction: domain.StatusPlatformPredictionFailed,
}

// FailedStatus returns the failure status of the named stage.
func FailedStatus(stage string) domain.Status {
	if s, ok := failedStatuses[stage]; ok {
		return s
	}
	return domain.Status(stage + "_failed")
}

// RunPipeline prepares and executes a run. It returns an error only when the
// run cannot start.
func RunPipeline(ctx context.Context, e *Executor, runID string, in domain.PipelineInputs) (*domain.PipelineState, error) {
	state, err := e.Prepare(ctx, runID, in)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, state), nil
}
