package domain

import (
	"encoding/json"
	"fmt"
)

// Edge is a directed connection between two personas.
type Edge struct {
	Source             string   `json:"source"`
	Target             string   `json:"target"`
	ConnectionStrength float64  `json:"connection_strength"`
	ConnectionType     string   `json:"connection_type"`
	SharedTraits       []string `json:"shared_traits,omitempty"`
}

// Cluster is a named community within the network.
type Cluster struct {
	ClusterID     string   `json:"cluster_id"`
	Members       []string `json:"members"`
	ClusterTraits []string `json:"cluster_traits"`
}

// InfluenceHub marks a persona with outsized reach.
type InfluenceHub struct {
	PersonaID      string  `json:"persona_id"`
	InfluenceScore float64 `json:"influence_score"`
}

// UnmarshalJSON accepts either a bare persona id or an object.
func (h *InfluenceHub) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		h.PersonaID = id
		h.InfluenceScore = 1.0
		return nil
	}
	type plain InfluenceHub
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("influence hub: %w", err)
	}
	*h = InfluenceHub(p)
	return nil
}

// PersonaNetwork is the synthesized social graph for one run.
type PersonaNetwork struct {
	Nodes    []string       `json:"nodes"`
	Edges    []Edge         `json:"edges"`
	Clusters []Cluster      `json:"clusters"`
	Hubs     []InfluenceHub `json:"influence_hubs"`

	ConnectionDensity     float64 `json:"connection_density"`
	ClusteringCoefficient float64 `json:"clustering_coefficient"`
	AvgPathLength         float64 `json:"avg_path_length"`
	HubThreshold          int     `json:"hub_threshold"`

	// Fallback is set when the network was synthesized without the model.
	Fallback bool `json:"is_fallback,omitempty"`
}

// HubIDs returns the hub persona ids in order.
func (n *PersonaNetwork) HubIDs() []string {
	if n == nil {
		return nil
	}
	ids := make([]string, len(n.Hubs))
	for i, h := range n.Hubs {
		ids[i] = h.PersonaID
	}
	return ids
}
