package results

import (
	"math"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

const (
	peakBucketSeconds  = 60
	viralShareFraction = 0.10
)

// BuildMetrics computes the aggregate counts and rates over reactions.
// Rates are rounded to three places and the viral coefficient to two.
// Timing fields are left for PeakEngagementTime and TimeToViral.
func BuildMetrics(reactions []domain.SecondReaction) *domain.FinalMetrics {
	m := &domain.FinalMetrics{TotalPersonas: len(reactions)}

	engaged, sharers := 0, 0
	for _, r := range reactions {
		if r.WillView {
			m.TotalViews++
		}
		if r.WillLike {
			m.TotalLikes++
		}
		if r.WillShare {
			m.TotalShares++
			sharers++
		}
		if r.WillComment {
			m.TotalComments++
		}
		if r.Engaged() {
			engaged++
		}
		if r.ChangedFromInitial {
			m.PersonasWhoChanged++
			if r.WillLike || r.WillShare {
				m.SocialInfluenceEngagement++
			}
		}
	}

	m.ViewRate = domain.Round(ratio(m.TotalViews, m.TotalPersonas), 3)
	m.EngagementRate = domain.Round(ratio(engaged, m.TotalPersonas), 3)
	m.ViralCoefficient = domain.Round(float64(m.TotalShares)/float64(max(1, sharers)), 2)
	m.ChangeRate = domain.Round(ratio(m.PersonasWhoChanged, m.TotalPersonas), 3)
	m.SocialInfluencePercentage = domain.Round(ratio(m.SocialInfluenceEngagement, engaged), 3)
	return m
}

// PeakEngagementTime returns the start of the 60 second bucket holding the
// most timeline entries. Ties go to the earliest bucket; an empty timeline
// yields 0.
func PeakEngagementTime(timeline []domain.TimelineEvent) float64 {
	counts := make(map[float64]int)
	var peak float64
	best := 0
	for _, e := range timeline {
		b := math.Floor(e.Timestamp/peakBucketSeconds) * peakBucketSeconds
		counts[b]++
		if c := counts[b]; c > best || (c == best && b < peak) {
			best, peak = c, b
		}
	}
	return peak
}

// TimeToViral returns the timestamp at which cumulative shares on the
// timeline first reach 10% of personas, or nil when they never do.
func TimeToViral(timeline []domain.TimelineEvent, personas int) *float64 {
	if personas <= 0 {
		return nil
	}
	threshold := viralShareFraction * float64(personas)
	shares := 0
	for _, e := range timeline {
		if !isShare(e) {
			continue
		}
		shares++
		if float64(shares) >= threshold {
			ts := e.Timestamp
			return &ts
		}
	}
	return nil
}

func isShare(e domain.TimelineEvent) bool {
	if e.EventType == "share" {
		return true
	}
	if e.EventType == EventView {
		shared, _ := e.Details["will_share"].(bool)
		return shared
	}
	return false
}
