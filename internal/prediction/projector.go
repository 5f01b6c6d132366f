package prediction

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/tjfontaine/audiencesim/internal/codec"
	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/prompts"
)

const refineTemperature = 0.4

// Projector produces platform predictions.
type Projector struct {
	invoker ports.ModelInvoker
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRand sets the variance source.
func WithRand(r *rand.Rand) Option {
	return func(p *Projector) {
		if r != nil {
			p.rng = r
		}
	}
}

// NewProjector creates a projector.
func NewProjector(invoker ports.ModelInvoker, opts ...Option) *Projector {
	p := &Projector{
		invoker: invoker,
		logger:  slog.Default(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Followers reads the creator's follower count from platform metrics.
func Followers(metrics map[string]any) int {
	return MetricValue(metrics["followers"])
}

func (p *Projector) baseline(platform string, followers int, rate float64) domain.BaselinePrediction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Baseline(platform, followers, rate, p.rng)
}

// Project always returns predictions carrying the baseline. When the
// refinement call or its repair fails the baseline is returned alone with
// the refinement error.
func (p *Projector) Project(ctx context.Context, state *domain.PipelineState) (*domain.PlatformPredictions, error) {
	var rate float64
	if state.FinalMetrics != nil {
		rate = state.FinalMetrics.EngagementRate
	}

	out := &domain.PlatformPredictions{
		BaselinePrediction: p.baseline(state.Platform, Followers(state.PlatformMetrics), rate),
		PredictionMethod:   domain.PredictionBaseline,
	}

	ref, err := p.refine(ctx, state, out.BaselinePrediction)
	if err != nil {
		return out, err
	}
	out.Refinement = ref
	out.PredictionMethod = domain.PredictionHybrid
	return out, nil
}

func (p *Projector) refine(ctx context.Context, state *domain.PipelineState, base domain.BaselinePrediction) (domain.Refinement, error) {
	prompt, err := prompts.Render(prompts.PlatformRefinement, map[string]any{
		"Platform":        state.Platform,
		"UserContext":     orEmpty(state.UserContext),
		"PlatformMetrics": orEmpty(state.PlatformMetrics),
		"Analysis":        state.ContentAnalysis(),
		"Metrics":         state.FinalMetrics,
		"Insights":        state.ReactionInsights,
		"Baseline":        base,
	})
	if err != nil {
		return domain.Refinement{}, err
	}

	raw, err := p.invoker.Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt,
		Tier:        ports.TierLite,
		Temperature: refineTemperature,
		JSON:        true,
	})
	if err != nil {
		return domain.Refinement{}, err
	}

	m, err := codec.Repair(raw)
	if err != nil {
		return domain.Refinement{}, err
	}
	return Overlay(m), nil
}

// Overlay picks the refinement fields out of a decoded model response.
// Counts may be numbers or human-readable strings; anything else is ignored.
func Overlay(m map[string]any) domain.Refinement {
	return domain.Refinement{
		PredictedViews:          intField(m, "predicted_views"),
		PredictedLikes:          intField(m, "predicted_likes"),
		PredictedComments:       intField(m, "predicted_comments"),
		PredictedShares:         intField(m, "predicted_shares"),
		PredictedSaves:          intField(m, "predicted_saves"),
		PredictedEngagementRate: floatField(m, "predicted_engagement_rate"),
		ViralityScore:           floatField(m, "virality_score"),
		PerformanceTier:         stringField(m, "performance_tier"),
		ReachEstimate:           stringField(m, "reach_estimate"),
		ContentStrengths:        listField(m, "content_strengths"),
		ContentWeaknesses:       listField(m, "content_weaknesses"),
		Recommendations:         listField(m, "recommendations"),
		ComparisonToUserAverage: stringField(m, "comparison_to_user_average"),
		BestTimeToPost:          stringField(m, "best_time_to_post"),
	}
}

func intField(m map[string]any, key string) *int {
	switch v := m[key].(type) {
	case float64:
		n := MetricValue(v)
		return &n
	case string:
		if v == "" {
			return nil
		}
		n := ParseMetric(v)
		return &n
	}
	return nil
}

func floatField(m map[string]any, key string) *float64 {
	if v, ok := m[key].(float64); ok {
		return &v
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func listField(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
