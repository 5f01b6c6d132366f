package results

import (
	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

const (
	influencedAbove = 0.6
	resistantBelow  = 0.2
	insightCap      = 10
)

// InsightInputs are the state fields insights are derived from.
type InsightInputs struct {
	Platform string
	Personas []domain.Persona
	Initial  []domain.InitialReaction
	Active   []domain.SecondReaction
	Network  *domain.PersonaNetwork
	Analysis domain.Analysis
}

var sentimentScore = map[string]float64{
	domain.SentimentPositive: 1,
	domain.SentimentNeutral:  0,
	domain.SentimentNegative: -1,
}

// BuildInsights extracts the qualitative findings. Persona lists keep input
// order and hold at most ten ids each.
func BuildInsights(in InsightInputs) *domain.ReactionInsights {
	ins := &domain.ReactionInsights{
		MostInfluencedPersonas: []string{},
		MostResistantPersonas:  []string{},
		InfluencedDemographics: domain.InfluencedDemographics{
			AgeGroups: map[string]int{},
			Interests: map[string]int{},
		},
		SentimentShifts: map[string]int{
			domain.ShiftPositiveToNegative: 0,
			domain.ShiftNegativeToPositive: 0,
			domain.ShiftNeutralToPositive:  0,
			domain.ShiftNeutralToNegative:  0,
			domain.ShiftOther:              0,
		},
		ContentStrengths:  stringList(in.Analysis["content_strengths"]),
		ContentWeaknesses: stringList(in.Analysis["content_weaknesses"]),
	}

	personas := make(map[string]domain.Persona, len(in.Personas))
	for _, p := range in.Personas {
		personas[p.PersonaID] = p
	}
	initial := make(map[string]domain.InitialReaction, len(in.Initial))
	for _, r := range in.Initial {
		initial[r.PersonaID] = r
	}

	var sentimentDelta float64
	for _, r := range in.Active {
		if r.InfluenceLevel > influencedAbove && len(ins.MostInfluencedPersonas) < insightCap {
			ins.MostInfluencedPersonas = append(ins.MostInfluencedPersonas, r.PersonaID)
		}
		if r.InfluenceLevel < resistantBelow && !r.ChangedFromInitial && len(ins.MostResistantPersonas) < insightCap {
			ins.MostResistantPersonas = append(ins.MostResistantPersonas, r.PersonaID)
		}

		before := domain.SentimentNeutral
		if ir, ok := initial[r.PersonaID]; ok && ir.Sentiment != "" {
			before = ir.Sentiment
		}
		after := r.UpdatedSentiment
		if after == "" {
			after = domain.SentimentNeutral
		}
		sentimentDelta += sentimentScore[after] - sentimentScore[before]

		if !r.ChangedFromInitial {
			continue
		}
		ins.SentimentShifts[shiftKey(before, after)]++
		if p, ok := personas[r.PersonaID]; ok {
			ins.InfluencedDemographics.AgeGroups[domain.AgeGroup(p.Age)]++
			if len(p.Interests) > 0 {
				ins.InfluencedDemographics.Interests[p.Interests[0]]++
			}
		}
	}
	if len(in.Active) > 0 {
		ins.AvgSentimentChange = domain.Round(sentimentDelta/float64(len(in.Active)), 3)
	}

	ins.PlatformSpecificPatterns = platformPatterns(in)
	return ins
}

func shiftKey(before, after string) string {
	switch k := before + "_to_" + after; k {
	case domain.ShiftPositiveToNegative, domain.ShiftNegativeToPositive,
		domain.ShiftNeutralToPositive, domain.ShiftNeutralToNegative:
		return k
	default:
		return domain.ShiftOther
	}
}

// platformPatterns summarizes how the network's hubs and the influenced
// personas behaved on the run's platform.
func platformPatterns(in InsightInputs) map[string]any {
	hubs := in.Network.HubIDs()
	engagedHubs := 0
	byID := make(map[string]domain.SecondReaction, len(in.Active))
	for _, r := range in.Active {
		byID[r.PersonaID] = r
	}
	for _, id := range hubs {
		if r, ok := byID[id]; ok && r.Engaged() {
			engagedHubs++
		}
	}

	var influence float64
	for _, r := range in.Active {
		influence += r.InfluenceLevel
	}
	avg := 0.0
	if len(in.Active) > 0 {
		avg = domain.Round(influence/float64(len(in.Active)), 3)
	}

	return map[string]any{
		"platform":            in.Platform,
		"hub_count":           len(hubs),
		"engaged_hubs":        engagedHubs,
		"avg_influence_level": avg,
	}
}

func stringList(v any) []string {
	out := []string{}
	switch vv := v.(type) {
	case []string:
		out = append(out, vv...)
	case []any:
		for _, s := range vv {
			if s, ok := s.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
