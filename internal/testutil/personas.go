package testutil

import (
	"context"
	"fmt"
	"sort"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
)

// Personas returns n valid personas with ids p1..pn.
func Personas(n int) []domain.Persona {
	interests := []string{"fitness", "cooking", "gaming", "travel", "fashion", "tech"}
	out := make([]domain.Persona, n)
	for i := range out {
		out[i] = domain.Persona{
			PersonaID:            fmt.Sprintf("p%d", i+1),
			Name:                 fmt.Sprintf("Persona %d", i+1),
			Age:                  18 + (i*7)%50,
			Location:             "Austin, TX",
			Interests:            []string{interests[i%len(interests)], interests[(i+1)%len(interests)]},
			PersonalityTraits:    []string{"curious", "social"},
			EngagementLikelihood: 0.5,
			SharingTendency:      0.4,
			Influenceability:     0.6,
			Platform:             "tiktok",
		}
	}
	return out
}

// PersonaSource is an in-memory ports.PersonaSource.
type PersonaSource map[string][]domain.Persona

// Load implements ports.PersonaSource.
func (s PersonaSource) Load(_ context.Context, platform string) ([]domain.Persona, error) {
	p, ok := s[platform]
	if !ok {
		return nil, domain.NewStageError("persona_loading", domain.ErrorKindNotFound,
			fmt.Sprintf("no persona corpus for platform %q", platform)).WithErr(domain.ErrNotFound)
	}
	return p, nil
}

// Platforms implements ports.PersonaSource.
func (s PersonaSource) Platforms(context.Context) ([]string, error) {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
