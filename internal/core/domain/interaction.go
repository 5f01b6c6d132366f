package domain

// InteractionEvent is one simulated act of influence between two personas.
// Producers do not order events; chronological order is established when
// results are compiled.
type InteractionEvent struct {
	EventID           string  `json:"event_id"`
	Timestamp         float64 `json:"timestamp"`
	SourcePersonaID   string  `json:"source_persona_id"`
	TargetPersonaID   string  `json:"target_persona_id"`
	InteractionType   string  `json:"interaction_type"`
	Content           *string `json:"content,omitempty"`
	InfluenceStrength float64 `json:"influence_strength"`
	TargetResponse    string  `json:"target_response"`
}

// InfluenceChain is an ordered path of influence through the network.
type InfluenceChain struct {
	ChainID              string   `json:"chain_id"`
	PersonaSequence      []string `json:"persona_sequence"`
	TotalReach           int      `json:"total_reach"`
	AvgInfluenceStrength float64  `json:"avg_influence_strength"`
}

// PropagationStage describes one wave of content spread.
type PropagationStage map[string]any

// InteractionResults is the full output of the interaction simulation.
type InteractionResults struct {
	Events            []InteractionEvent  `json:"events"`
	InfluenceChains   []InfluenceChain    `json:"influence_chains"`
	SharingMap        map[string][]string `json:"sharing_map"`
	PropagationStages []PropagationStage  `json:"propagation_stages"`

	TotalInteractions          int     `json:"total_interactions"`
	UniqueSharers              int     `json:"unique_sharers"`
	AvgInfluencePerInteraction float64 `json:"avg_influence_per_interaction"`
	MaxChainLength             int     `json:"max_chain_length"`

	Fallback bool `json:"is_fallback,omitempty"`
}

// EmptyInteractionResults returns a valid result with no events.
func EmptyInteractionResults(fallback bool) *InteractionResults {
	return &InteractionResults{
		Events:            []InteractionEvent{},
		InfluenceChains:   []InfluenceChain{},
		SharingMap:        map[string][]string{},
		PropagationStages: []PropagationStage{},
		Fallback:          fallback,
	}
}
