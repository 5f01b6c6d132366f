package network

import "github.com/tjfontaine/audiencesim/internal/core/domain"

const (
	fallbackSpan     = 10
	fallbackStrength = 0.5
	fallbackType     = "acquaintance"
	fallbackCluster  = "default_cluster"
)

// FallbackNetwork builds the deterministic minimal network: a chain over the
// first personas, one cluster holding the first ten, and the first persona
// as the only hub. It depends only on the order of ids.
func FallbackNetwork(ids []string) *domain.PersonaNetwork {
	n := &domain.PersonaNetwork{
		Nodes:    append([]string{}, ids...),
		Edges:    []domain.Edge{},
		Clusters: []domain.Cluster{},
		Hubs:     []domain.InfluenceHub{},
		Fallback: true,
	}
	if len(ids) == 0 {
		return n
	}

	edges := min(len(ids)-1, fallbackSpan)
	for i := 0; i < edges; i++ {
		n.Edges = append(n.Edges, domain.Edge{
			Source:             ids[i],
			Target:             ids[i+1],
			ConnectionStrength: fallbackStrength,
			ConnectionType:     fallbackType,
		})
	}

	members := append([]string{}, ids[:min(len(ids), fallbackSpan)]...)
	n.Clusters = append(n.Clusters, domain.Cluster{
		ClusterID:     fallbackCluster,
		Members:       members,
		ClusterTraits: []string{},
	})
	n.Hubs = append(n.Hubs, domain.InfluenceHub{PersonaID: ids[0], InfluenceScore: 1.0})

	applyStats(n)
	return n
}
