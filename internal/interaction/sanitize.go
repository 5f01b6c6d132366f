package interaction

import (
	"fmt"
	"maps"
	"slices"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/network"
)

// Report counts what Sanitize changed.
type Report struct {
	EventsRepaired  int
	EventsDropped   int
	EventsTruncated int
}

// Changed reports whether any event was repaired or removed.
func (r Report) Changed() bool {
	return r.EventsRepaired+r.EventsDropped+r.EventsTruncated > 0
}

// Sanitize returns a copy of res that only references ids in known.
// Events with unresolvable endpoints are dropped, influence strengths are
// clamped, at most maxEvents events are kept and missing event ids are
// filled. Summary counts the model left at zero are recomputed; the total
// always matches the kept events.
func Sanitize(res *domain.InteractionResults, known network.IDSet, maxEvents int) (*domain.InteractionResults, Report) {
	out := EmptyResults(res.Fallback)
	var rep Report

	for _, e := range res.Events {
		src, okS := network.NormalizeID(e.SourcePersonaID, known)
		tgt, okT := network.NormalizeID(e.TargetPersonaID, known)
		if !okS || !okT {
			rep.EventsDropped++
			continue
		}
		if maxEvents > 0 && len(out.Events) >= maxEvents {
			rep.EventsTruncated++
			continue
		}
		if src != e.SourcePersonaID || tgt != e.TargetPersonaID {
			rep.EventsRepaired++
		}
		e.SourcePersonaID, e.TargetPersonaID = src, tgt
		e.InfluenceStrength = domain.Clamp01(e.InfluenceStrength)
		if e.Timestamp < 0 {
			e.Timestamp = 0
		}
		if e.EventID == "" {
			e.EventID = fmt.Sprintf("evt_%03d", len(out.Events)+1)
		}
		out.Events = append(out.Events, e)
	}

	for _, c := range res.InfluenceChains {
		seq := make([]string, 0, len(c.PersonaSequence))
		for _, id := range c.PersonaSequence {
			if id, ok := network.NormalizeID(id, known); ok {
				seq = append(seq, id)
			}
		}
		if len(seq) == 0 {
			continue
		}
		c.PersonaSequence = seq
		c.AvgInfluenceStrength = domain.Clamp01(c.AvgInfluenceStrength)
		if c.ChainID == "" {
			c.ChainID = fmt.Sprintf("chain_%d", len(out.InfluenceChains)+1)
		}
		out.InfluenceChains = append(out.InfluenceChains, c)
	}

	// Sharers whose ids normalize to the same persona are merged in key
	// order, keeping each target once.
	for _, sharer := range slices.Sorted(maps.Keys(res.SharingMap)) {
		id, ok := network.NormalizeID(sharer, known)
		if !ok {
			continue
		}
		kept := out.SharingMap[id]
		for _, t := range res.SharingMap[sharer] {
			if t, ok := network.NormalizeID(t, known); ok && !slices.Contains(kept, t) {
				kept = append(kept, t)
			}
		}
		out.SharingMap[id] = kept
	}

	if res.PropagationStages != nil {
		out.PropagationStages = res.PropagationStages
	}

	out.TotalInteractions = len(out.Events)
	out.UniqueSharers = res.UniqueSharers
	if out.UniqueSharers == 0 {
		out.UniqueSharers = uniqueSharers(out)
	}
	out.AvgInfluencePerInteraction = domain.Clamp01(res.AvgInfluencePerInteraction)
	if out.AvgInfluencePerInteraction == 0 {
		out.AvgInfluencePerInteraction = meanStrength(out.Events)
	}
	out.MaxChainLength = res.MaxChainLength
	if out.MaxChainLength == 0 {
		for _, c := range out.InfluenceChains {
			out.MaxChainLength = max(out.MaxChainLength, len(c.PersonaSequence))
		}
	}
	return out, rep
}

func uniqueSharers(res *domain.InteractionResults) int {
	if len(res.SharingMap) > 0 {
		return len(res.SharingMap)
	}
	seen := make(map[string]struct{})
	for _, e := range res.Events {
		if e.InteractionType == "share" {
			seen[e.SourcePersonaID] = struct{}{}
		}
	}
	return len(seen)
}

func meanStrength(events []domain.InteractionEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.InfluenceStrength
	}
	return domain.Round(sum/float64(len(events)), 3)
}
