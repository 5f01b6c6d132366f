// Package domain provides the canonical simulation types shared by every stage
// of the audience simulation pipeline.
package domain

import "fmt"

// Persona is a synthetic audience member. Personas are immutable once a run
// has loaded them.
type Persona struct {
	PersonaID string `json:"persona_id"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Location  string `json:"location"`
	Gender    string `json:"gender"`

	Occupation  string `json:"occupation"`
	IncomeLevel string `json:"income_level"`
	Education   string `json:"education"`

	Interests          []string `json:"interests"`
	ContentPreferences []string `json:"content_preferences"`
	PlatformUsageHours float64  `json:"platform_usage_hours"`
	PersonalityTraits  []string `json:"personality_traits"`

	// Propensities, each in [0,1].
	EngagementLikelihood float64 `json:"engagement_likelihood"`
	SharingTendency      float64 `json:"sharing_tendency"`
	Influenceability     float64 `json:"influenceability"`

	ContentCreator bool   `json:"content_creator"`
	Platform       string `json:"platform"`
	FollowerCount  *int   `json:"follower_count,omitempty"`
	FollowingCount *int   `json:"following_count,omitempty"`
}

// Validate checks the persona against its domain constraints.
func (p Persona) Validate() error {
	if p.PersonaID == "" {
		return fmt.Errorf("persona_id is required")
	}
	if p.Age < 13 || p.Age > 100 {
		return fmt.Errorf("persona %s: age %d out of range [13,100]", p.PersonaID, p.Age)
	}
	if p.PlatformUsageHours < 0 {
		return fmt.Errorf("persona %s: negative platform_usage_hours", p.PersonaID)
	}
	for name, v := range map[string]float64{
		"engagement_likelihood": p.EngagementLikelihood,
		"sharing_tendency":      p.SharingTendency,
		"influenceability":      p.Influenceability,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("persona %s: %s %.3f out of range [0,1]", p.PersonaID, name, v)
		}
	}
	return nil
}

// PersonaIDs returns the ids of personas in order.
func PersonaIDs(personas []Persona) []string {
	ids := make([]string, len(personas))
	for i, p := range personas {
		ids[i] = p.PersonaID
	}
	return ids
}

// AgeGroup buckets an age into the coarse ranges used by insights.
func AgeGroup(age int) string {
	switch {
	case age < 18:
		return "13-17"
	case age < 25:
		return "18-24"
	case age < 35:
		return "25-34"
	case age < 45:
		return "35-44"
	case age < 55:
		return "45-54"
	default:
		return "55+"
	}
}
