package prediction

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/core/ports"
	"github.com/tjfontaine/audiencesim/internal/testutil"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"850K", 850000},
		{"22.1M", 22100000},
		{"1.5B", 1500000000},
		{"850k", 850000},
		{" 12 ", 12},
		{"1,200", 1200},
		{"3.7", 4},
		{"", 0},
		{"lots", 0},
		{"K", 0},
		{"-5K", 0},
		{"12KM", 0},
		{"1e30", MaxMetric},
		{"999999999B", MaxMetric},
		{"1000B", MaxMetric},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseMetric(tt.in); got != tt.want {
				t.Errorf("ParseMetric(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{999, "999"},
		{1000, "1.0K"},
		{850000, "850.0K"},
		{22100000, "22.1M"},
		{1500000000, "1.5B"},
	}
	for _, tt := range tests {
		if got := FormatMetric(tt.in); got != tt.want {
			t.Errorf("FormatMetric(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMetricValue(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{"850K", 850000},
		{float64(1200), 1200},
		{float64(1e20), MaxMetric},
		{float64(-3), 0},
		{42, 42},
		{nil, 0},
		{true, 0},
	}
	for _, tt := range tests {
		if got := MetricValue(tt.in); got != tt.want {
			t.Errorf("MetricValue(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFactorsFor(t *testing.T) {
	if FactorsFor("Instagram").SaveRate != 0.05 {
		t.Error("instagram should be case-insensitive")
	}
	if FactorsFor("x") != FactorsFor("twitter") {
		t.Error("x should alias twitter")
	}
	if FactorsFor("myspace") != FactorsFor("tiktok") {
		t.Error("unknown platforms should use tiktok")
	}
}

func variance(seed int64) float64 {
	return 0.8 + rand.New(rand.NewSource(seed)).Float64()*0.4
}

func TestBaseline_Boosted(t *testing.T) {
	followers, rate := 850000, 0.6
	got := Baseline("tiktok", followers, rate, rand.New(rand.NewSource(1)))

	organic := int(float64(followers) * 0.15)
	boosted := int(float64(organic) * 1.8)
	views := int(float64(boosted) * variance(1))
	decay := 1.0
	if views > boosted {
		decay = 0.85
	}
	scaled := float64(views) * rate * decay

	want := domain.BaselinePrediction{
		BaselineViews:            views,
		BaselineLikes:            int(scaled * 0.70),
		BaselineComments:         int(scaled * 0.15),
		BaselineShares:           int(scaled * 0.10),
		BaselineSaves:            int(float64(views) * 0.08),
		OrganicReach:             organic,
		AlgorithmBoostedReach:    boosted,
		SimulationEngagementRate: rate,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Baseline() mismatch (-want +got):\n%s", diff)
	}
}

func TestBaseline_Viral(t *testing.T) {
	got := Baseline("tiktok", 1000, 0.7, rand.New(rand.NewSource(2)))

	if !got.IsViralPotential {
		t.Fatal("expected viral potential")
	}
	if got.BaselineViews < 20000 || got.BaselineViews > 30000 {
		t.Errorf("views = %d, want 25000 ±20%%", got.BaselineViews)
	}
	rate := 0.7
	wantLikes := int(float64(got.BaselineViews) * rate * 0.85 * 0.70)
	if got.BaselineLikes != wantLikes {
		t.Errorf("likes = %d, want %d with decay", got.BaselineLikes, wantLikes)
	}
}

func TestBaseline_NoEngagement(t *testing.T) {
	got := Baseline("instagram", 0, 0, rand.New(rand.NewSource(3)))
	want := domain.BaselinePrediction{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Baseline() mismatch (-want +got):\n%s", diff)
	}
}

func TestBaseline_VarianceBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 200; i++ {
		got := Baseline("tiktok", 100000, 0.3, rng)
		if got.BaselineViews < 11990 || got.BaselineViews > 18010 {
			t.Fatalf("views = %d outside ±20%% of 15000", got.BaselineViews)
		}
	}
}

func TestBaseline_SaturatesHugeFollowers(t *testing.T) {
	tests := []struct {
		name      string
		followers int
	}{
		{"parsed 1e30", ParseMetric("1e30")},
		{"parsed 999999999B", ParseMetric("999999999B")},
		{"max int", int(^uint(0) >> 1)},
	}

	ceiling := int(MaxMetric * 25 * 1.2)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Baseline("tiktok", tt.followers, 0.9, rand.New(rand.NewSource(5)))

			if !got.IsViralPotential {
				t.Error("expected viral potential")
			}
			if got.BaselineViews <= 0 || got.BaselineViews > ceiling {
				t.Errorf("views = %d, want within (0, %d]", got.BaselineViews, ceiling)
			}
			for name, v := range map[string]int{
				"likes":    got.BaselineLikes,
				"comments": got.BaselineComments,
				"shares":   got.BaselineShares,
				"saves":    got.BaselineSaves,
				"organic":  got.OrganicReach,
				"boosted":  got.AlgorithmBoostedReach,
			} {
				if v <= 0 {
					t.Errorf("%s = %d, want positive", name, v)
				}
			}
		})
	}
}

func predictionState() *domain.PipelineState {
	state := domain.NewPipelineState("run-1", domain.PipelineInputs{
		Platform:        "tiktok",
		PlatformMetrics: map[string]any{"followers": "850K"},
	})
	state.FinalMetrics = &domain.FinalMetrics{EngagementRate: 0.4}
	return state
}

func TestProjector_Refined(t *testing.T) {
	inv := testutil.StaticInvoker("```json\n" + `{
		"predicted_views": "1.2M",
		"predicted_likes": 5000,
		"virality_score": 7.5,
		"performance_tier": "above average",
		"content_strengths": ["hook", 3],
		"recommendations": ["post at 6pm"],
		"baseline_views": 1
	}` + "\n```")
	p := NewProjector(inv, WithRand(rand.New(rand.NewSource(5))))

	got, err := p.Project(context.Background(), predictionState())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if got.PredictionMethod != domain.PredictionHybrid {
		t.Errorf("method = %q", got.PredictionMethod)
	}
	if got.Views() != 1200000 || *got.PredictedLikes != 5000 {
		t.Errorf("refined = %d/%d", got.Views(), *got.PredictedLikes)
	}
	if got.PredictedComments != nil {
		t.Error("absent fields should stay nil")
	}
	if got.BaselineViews == 1 {
		t.Error("refinement must not overwrite baseline fields")
	}
	if diff := cmp.Diff([]string{"hook"}, got.ContentStrengths); diff != "" {
		t.Errorf("strengths mismatch (-want +got):\n%s", diff)
	}

	req := inv.Requests()[0]
	if req.Tier != ports.TierLite || req.Temperature != 0.4 || !req.JSON {
		t.Errorf("request = %+v", req)
	}
}

func TestProjector_RefinementFailure(t *testing.T) {
	tests := []struct {
		name     string
		invoker  *testutil.StubInvoker
		wantKind domain.ErrorKind
	}{
		{"transport", testutil.FailingInvoker(), domain.ErrorKindTransport},
		{"truncated", testutil.StaticInvoker(`{"predicted_views": 10`), domain.ErrorKindMalformedOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjector(tt.invoker, WithRand(rand.New(rand.NewSource(6))))

			got, err := p.Project(context.Background(), predictionState())
			if kind := domain.KindOf(err); kind != tt.wantKind {
				t.Errorf("error kind = %q, want %q", kind, tt.wantKind)
			}
			want := Baseline("tiktok", 850000, 0.4, rand.New(rand.NewSource(6)))
			if diff := cmp.Diff(want, got.BaselinePrediction); diff != "" {
				t.Errorf("baseline mismatch (-want +got):\n%s", diff)
			}
			if got.PredictionMethod != domain.PredictionBaseline {
				t.Errorf("method = %q", got.PredictionMethod)
			}
			if diff := cmp.Diff(domain.Refinement{}, got.Refinement); diff != "" {
				t.Errorf("refinement should be empty (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStage_Process(t *testing.T) {
	state := predictionState()

	res := NewStage(NewProjector(testutil.FailingInvoker())).Process(context.Background(), state)

	if res.State.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", res.State.Status)
	}
	if res.Err == nil || res.Err.Stage != domain.StagePlatformPrediction {
		t.Errorf("Err = %v", res.Err)
	}
	if res.State.PlatformPredictions == nil {
		t.Fatal("predictions missing")
	}
	if state.PlatformPredictions != nil {
		t.Error("input state mutated")
	}
}

func TestStage_Success(t *testing.T) {
	res := NewStage(NewProjector(testutil.StaticInvoker(`{"virality_score": 4}`))).Process(context.Background(), predictionState())

	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.State.PlatformPredictions.PredictionMethod != domain.PredictionHybrid {
		t.Errorf("method = %q", res.State.PlatformPredictions.PredictionMethod)
	}
}
