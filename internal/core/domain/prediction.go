package domain

// Prediction methods.
const (
	PredictionBaseline = "baseline_scaling"
	PredictionHybrid   = "hybrid_ai_scaling"
)

// BaselinePrediction is the deterministic reach projection. It is always
// present in PlatformPredictions.
type BaselinePrediction struct {
	BaselineViews            int     `json:"baseline_views"`
	BaselineLikes            int     `json:"baseline_likes"`
	BaselineComments         int     `json:"baseline_comments"`
	BaselineShares           int     `json:"baseline_shares"`
	BaselineSaves            int     `json:"baseline_saves"`
	IsViralPotential         bool    `json:"is_viral_potential"`
	OrganicReach             int     `json:"organic_reach"`
	AlgorithmBoostedReach    int     `json:"algorithm_boosted_reach"`
	SimulationEngagementRate float64 `json:"simulation_engagement_rate"`
}

// Refinement is the optional generative overlay on top of the baseline.
// Every field is optional.
type Refinement struct {
	PredictedViews          *int     `json:"predicted_views,omitempty"`
	PredictedLikes          *int     `json:"predicted_likes,omitempty"`
	PredictedComments       *int     `json:"predicted_comments,omitempty"`
	PredictedShares         *int     `json:"predicted_shares,omitempty"`
	PredictedSaves          *int     `json:"predicted_saves,omitempty"`
	PredictedEngagementRate *float64 `json:"predicted_engagement_rate,omitempty"`
	ViralityScore           *float64 `json:"virality_score,omitempty"`
	PerformanceTier         string   `json:"performance_tier,omitempty"`
	ReachEstimate           string   `json:"reach_estimate,omitempty"`
	ContentStrengths        []string `json:"content_strengths,omitempty"`
	ContentWeaknesses       []string `json:"content_weaknesses,omitempty"`
	Recommendations         []string `json:"recommendations,omitempty"`
	ComparisonToUserAverage string   `json:"comparison_to_user_average,omitempty"`
	BestTimeToPost          string   `json:"best_time_to_post,omitempty"`
}

// PlatformPredictions is the real-world performance projection.
type PlatformPredictions struct {
	BaselinePrediction
	Refinement
	PredictionMethod string `json:"prediction_method"`
}

// Views returns the refined view count when present, else the baseline.
func (p PlatformPredictions) Views() int {
	if p.PredictedViews != nil {
		return *p.PredictedViews
	}
	return p.BaselineViews
}
