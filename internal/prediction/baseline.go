// Package prediction projects simulated engagement onto real platform
// reach: a deterministic baseline plus an optional model refinement.
package prediction

import (
	"math"
	"math/rand"
	"strings"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// Factors are the platform reach parameters.
type Factors struct {
	OrganicReach    float64
	AlgorithmBoost  float64
	ViralThreshold  float64
	ViralMultiplier float64
	SaveRate        float64
}

const (
	defaultPlatform = "tiktok"

	boostAbove = 0.5

	likeFraction    = 0.70
	commentFraction = 0.15
	shareFraction   = 0.10
	viralDecay      = 0.85

	varianceLow  = 0.8
	varianceHigh = 1.2
)

var platformFactors = map[string]Factors{
	"tiktok":    {OrganicReach: 0.15, AlgorithmBoost: 1.8, ViralThreshold: 0.65, ViralMultiplier: 25, SaveRate: 0.08},
	"instagram": {OrganicReach: 0.10, AlgorithmBoost: 1.3, ViralThreshold: 0.70, ViralMultiplier: 15, SaveRate: 0.05},
	"youtube":   {OrganicReach: 0.12, AlgorithmBoost: 1.5, ViralThreshold: 0.60, ViralMultiplier: 20, SaveRate: 0.06},
	"linkedin":  {OrganicReach: 0.08, AlgorithmBoost: 1.2, ViralThreshold: 0.55, ViralMultiplier: 8, SaveRate: 0.03},
	"twitter":   {OrganicReach: 0.05, AlgorithmBoost: 1.4, ViralThreshold: 0.60, ViralMultiplier: 12, SaveRate: 0.02},
}

// FactorsFor returns the factors for platform. Unknown platforms use
// tiktok's.
func FactorsFor(platform string) Factors {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "x" {
		p = "twitter"
	}
	if f, ok := platformFactors[p]; ok {
		return f
	}
	return platformFactors[defaultPlatform]
}

// Baseline computes the deterministic reach projection for followers at the
// simulated engagement rate. rng supplies the ±20% variance on views.
func Baseline(platform string, followers int, engagementRate float64, rng *rand.Rand) domain.BaselinePrediction {
	f := FactorsFor(platform)
	audience := float64(min(max(followers, 0), MaxMetric))

	organic := math.Floor(audience * f.OrganicReach)
	boosted := organic
	if engagementRate > boostAbove {
		boosted = math.Floor(organic * f.AlgorithmBoost)
	}

	viral := engagementRate >= f.ViralThreshold
	views := boosted
	if viral {
		views = math.Max(boosted, math.Floor(audience*f.ViralMultiplier))
	}

	variance := varianceLow + rng.Float64()*(varianceHigh-varianceLow)
	views = math.Floor(views * variance)

	decay := 1.0
	if views > boosted {
		decay = viralDecay
	}
	scaled := views * engagementRate * decay

	return domain.BaselinePrediction{
		BaselineViews:            int(views),
		BaselineLikes:            int(scaled * likeFraction),
		BaselineComments:         int(scaled * commentFraction),
		BaselineShares:           int(scaled * shareFraction),
		BaselineSaves:            int(views * f.SaveRate),
		IsViralPotential:         viral,
		OrganicReach:             int(organic),
		AlgorithmBoostedReach:    int(boosted),
		SimulationEngagementRate: engagementRate,
	}
}
